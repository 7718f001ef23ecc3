package comfort

// Night window and the fixed temperature band applied inside it
const (
	NightStartHour = 23
	NightEndHour   = 7

	NightTempMin = 17.5
	NightTempMax = 19.0
)

// DefaultProfiles are the comfort bands used until the user edits them
func DefaultProfiles() map[Category]LimitProfile {
	return map[Category]LimitProfile{
		CategoryLiving:   {TempMin: 20, TempMax: 23, HumMin: 40, HumMax: 60, Label: "Living area"},
		CategorySleeping: {TempMin: 16, TempMax: 19, HumMin: 40, HumMax: 60, Label: "Sleeping area"},
		CategoryBathroom: {TempMin: 21, TempMax: 24, HumMin: 40, HumMax: 70, Label: "Bathroom"},
		CategoryStorage:  {TempMin: 10, TempMax: 25, HumMin: 30, HumMax: 65, Label: "Storage"},
		CategoryDefault:  {TempMin: 19, TempMax: 22, HumMin: 40, HumMax: 60, Label: "Default"},
	}
}

// IsNight reports whether the local hour falls in [23:00, 07:00)
func IsNight(hour int) bool {
	return hour >= NightStartHour || hour < NightEndHour
}

// ProfileFor looks up the category profile, falling back to the default entry
func ProfileFor(profiles map[Category]LimitProfile, category Category) LimitProfile {
	if p, ok := profiles[category]; ok {
		return p
	}
	if p, ok := profiles[CategoryDefault]; ok {
		return p
	}
	return DefaultProfiles()[CategoryDefault]
}

// ResolveLimits returns the effective limits for a category at the given local hour.
// At night every category except storage uses the fixed night temperature band;
// humidity bounds always come from the profile.
func ResolveLimits(profiles map[Category]LimitProfile, category Category, hour int) Limits {
	p := ProfileFor(profiles, category)
	limits := Limits{
		TempMin: p.TempMin,
		TempMax: p.TempMax,
		HumMin:  p.HumMin,
		HumMax:  p.HumMax,
	}

	if IsNight(hour) && category != CategoryStorage {
		limits.TempMin = NightTempMin
		limits.TempMax = NightTempMax
	}

	return limits
}
