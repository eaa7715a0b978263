package envinfo

import (
	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// Collect reads the page metadata and classifies its user agent
func Collect(env browser.Environment) models.EnvInfo {
	meta := env.PageMeta()

	return models.EnvInfo{
		Origin:   meta.Origin,
		URL:      meta.URL,
		Title:    meta.Title,
		Referer:  meta.Referrer,
		OS:       ClassifyOS(meta.UserAgent),
		Browser:  ClassifyBrowser(meta.UserAgent),
		Language: meta.Language,
		Network:  meta.ConnectionType,
	}
}
