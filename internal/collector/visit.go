package collector

import (
	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// ClassifyVisit maps performance.navigation.type to a VisitType
func ClassifyVisit(env browser.Environment) models.VisitType {
	name, ok := env.NavigationType()
	if !ok {
		return models.VisitOther
	}

	switch name {
	case models.NavigationTypeNavigate:
		return models.VisitNormal
	case models.NavigationTypeReload:
		return models.VisitReload
	case models.NavigationTypeBackForward:
		return models.VisitBackForward
	default:
		return models.VisitOther
	}
}

// visitSignal builds the visit envelope at the moment the page load fires
func visitSignal(env browser.Environment) func(browser.Event) models.Envelope {
	return func(browser.Event) models.Envelope {
		return models.NewEnvelope(models.VisitInfo{
			Time:   env.Now(),
			Origin: env.PageMeta().Referrer,
			Type:   ClassifyVisit(env),
		})
	}
}
