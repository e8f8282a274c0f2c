package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
	"github.com/dgmosdaegu/work-day-bot/internal/service"
	"github.com/dgmosdaegu/work-day-bot/internal/sheet"
	"github.com/dgmosdaegu/work-day-bot/internal/vocab"
)

// Runs the analysis pipeline against a saved workbook and prints the report
// that would have been delivered. Handy for checking rule or vocabulary
// changes against a known export before they ship.
func main() {
	var (
		file      string
		sheetName string
		date      string
		vocabPath string
		mode      string
	)

	flag.StringVar(&file, "file", "", "path to a saved portal workbook (.xlsx)")
	flag.StringVar(&sheetName, "sheet", "세부현황_B", "worksheet to analyze")
	flag.StringVar(&date, "date", "", "target date as YYYY-MM-DD, defaults to today")
	flag.StringVar(&vocabPath, "vocab", "", "optional vocabulary YAML overlaying the defaults")
	flag.StringVar(&mode, "mode", "auto", "run mode: auto, morning or evening")
	flag.Parse()

	if file == "" {
		log.Fatal("-file is required")
	}
	runMode := models.RunMode(mode)
	if !runMode.Valid() {
		log.Fatalf("invalid -mode %q: want auto, morning or evening", mode)
	}

	now := time.Now()
	targetDate := now
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, now.Location())
		if err != nil {
			log.Fatalf("invalid -date %q: %v", date, err)
		}
		targetDate = parsed
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatalf("read workbook: %v", err)
	}

	logr := zap.NewNop()
	loader := vocab.NewLoader(vocabPath, logr)
	reader := sheet.NewReader(logr)
	normalizer := service.NewNormalizerService(logr, nil)
	reports := service.NewReportService(logr)
	times := models.DefaultStandardTimes()
	attendance := service.NewAttendanceService(reader, normalizer, loader, reports, times, logr)

	report := attendance.Analyze(data, sheetName, targetDate, runMode.Resolve(now, times.EveningThresholdHour))

	fmt.Println(report.Text)
	if report.Failed() {
		os.Exit(1)
	}

	fmt.Println()
	printCounts(report.Counts)
}

func printCounts(counts models.SummaryCounts) {
	fmt.Println("Counts")
	fmt.Println("======")
	rows := []struct {
		label string
		value int
	}{
		{"total employees", counts.TotalEmployees},
		{"target", counts.Target},
		{"excluded", counts.Excluded},
		{"clocked in", counts.ClockedIn},
		{"missing clock-in", counts.MissingIn},
		{"clocked out", counts.ClockedOut},
		{"missing clock-out", counts.MissingOut},
	}
	for _, row := range rows {
		fmt.Printf("  %-18s %d\n", row.label, row.value)
	}
}
