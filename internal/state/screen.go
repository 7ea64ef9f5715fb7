package state

import "github.com/romanzh1/mindful-garden/internal/models"

// NextScreen decides where a reload lands.
// An incomplete profile only forces onboarding from an entry screen; inside the app the
// current screen is kept.
func NextScreen(current models.Screen, profile *models.Profile) models.Screen {
	complete := profile != nil && profile.OnboardingCompleted

	switch {
	case !complete && current.IsEntry():
		return models.ScreenOnboarding
	case !complete:
		return current
	case current.IsEntry():
		return models.ScreenHome
	default:
		return current
	}
}
