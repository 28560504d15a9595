package drchrono

import (
	"strings"

	"golang.org/x/oauth2"
)

// Endpoint returns the OAuth2 endpoints of the drchrono instance at baseURL.
func Endpoint(baseURL string) oauth2.Endpoint {
	base := strings.TrimSuffix(baseURL, "/")
	return oauth2.Endpoint{
		AuthURL:   base + "/o/authorize/",
		TokenURL:  base + "/o/token/",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}
