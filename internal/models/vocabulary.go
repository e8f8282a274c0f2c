package models

// LeaveVocabulary lists the activity labels that drive row partitioning.
// The values match the HR export verbatim, so they stay in the vendor's
// locale; everything downstream works on the derived coverage flags.
type LeaveVocabulary struct {
	LeaveTypes     []string `yaml:"leave_types" json:"leave_types"`
	FullDayReasons []string `yaml:"full_day_reasons" json:"full_day_reasons"`
	MorningHalf    string   `yaml:"morning_half" json:"morning_half"`
	AfternoonHalf  string   `yaml:"afternoon_half" json:"afternoon_half"`
	AttendanceType string   `yaml:"attendance_type" json:"attendance_type"`
	BusinessTrip   string   `yaml:"business_trip" json:"business_trip"`
}

// DefaultLeaveVocabulary returns the labels observed in the export.
func DefaultLeaveVocabulary() LeaveVocabulary {
	return LeaveVocabulary{
		LeaveTypes: []string{
			"법정휴가", "보상휴가", "출장", "교육", "공가", "병가", "경조휴가", "특별휴가",
		},
		FullDayReasons: []string{
			"연차", "출산휴가", "출산전후휴가", "청원휴가", "가족돌봄휴가", "특별휴가",
			"공가", "공상", "예비군훈련", "민방위훈련", "공로휴가", "병가",
		},
		MorningHalf:    "오전반차",
		AfternoonHalf:  "오후반차",
		AttendanceType: "출퇴근",
		BusinessTrip:   "출장",
	}
}

// HasLeaveType reports whether the label is a leave activity type.
func (v LeaveVocabulary) HasLeaveType(label string) bool {
	return containsLabel(v.LeaveTypes, label)
}

// HasFullDayReason reports whether the category is a full-day leave reason.
func (v LeaveVocabulary) HasFullDayReason(label string) bool {
	return containsLabel(v.FullDayReasons, label)
}

// IsLeaveRow reports whether an activity type/category pair marks a leave
// row: a known leave type, an explicit half-day category, or a full-day
// reason category.
func (v LeaveVocabulary) IsLeaveRow(activityType, category string) bool {
	if v.HasLeaveType(activityType) {
		return true
	}
	if category != "" && (category == v.MorningHalf || category == v.AfternoonHalf) {
		return true
	}
	return v.HasFullDayReason(category)
}

// Merged fills empty fields from the defaults so a sparse vocabulary file
// cannot disable partitioning entirely.
func (v LeaveVocabulary) Merged() LeaveVocabulary {
	def := DefaultLeaveVocabulary()
	if len(v.LeaveTypes) == 0 {
		v.LeaveTypes = def.LeaveTypes
	}
	if len(v.FullDayReasons) == 0 {
		v.FullDayReasons = def.FullDayReasons
	}
	if v.MorningHalf == "" {
		v.MorningHalf = def.MorningHalf
	}
	if v.AfternoonHalf == "" {
		v.AfternoonHalf = def.AfternoonHalf
	}
	if v.AttendanceType == "" {
		v.AttendanceType = def.AttendanceType
	}
	if v.BusinessTrip == "" {
		v.BusinessTrip = def.BusinessTrip
	}
	return v
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
