package model

// Company setting keys.
const (
	SettingCleaningCount  = "cleaning_assign_count"
	SettingMealCount      = "meal_assign_count"
	SettingApprovalWindow = "approval_window_minutes"
)

// CompanySettings is the typed view of a company's settings rows.
type CompanySettings struct {
	CleaningCount         int `json:"cleaning_assign_count"`
	MealCount             int `json:"meal_assign_count"`
	ApprovalWindowMinutes int `json:"approval_window_minutes"`
}

// AssignCount returns the default round size for kind.
func (s CompanySettings) AssignCount(kind ChoreKind) int {
	if kind == KindMeal {
		return s.MealCount
	}
	return s.CleaningCount
}
