package librelinkup

import "fmt"

// Endpoint is a regional LibreLinkUp API host.
type Endpoint struct {
	Hostname string
	Region   string
}

var (
	EndpointAE  = Endpoint{Hostname: "api-ae.libreview.io", Region: "ae"}
	EndpointAP  = Endpoint{Hostname: "api-ap.libreview.io", Region: "ap"}
	EndpointAU  = Endpoint{Hostname: "api-au.libreview.io", Region: "au"}
	EndpointCA  = Endpoint{Hostname: "api-ca.libreview.io", Region: "ca"}
	EndpointDE  = Endpoint{Hostname: "api-de.libreview.io", Region: "de"}
	EndpointEU  = Endpoint{Hostname: "api-eu.libreview.io", Region: "eu"}
	EndpointEU2 = Endpoint{Hostname: "api-eu2.libreview.io", Region: "eu2"}
	EndpointFR  = Endpoint{Hostname: "api-fr.libreview.io", Region: "fr"}
	EndpointJP  = Endpoint{Hostname: "api-jp.libreview.io", Region: "jp"}
	EndpointUS  = Endpoint{Hostname: "api-us.libreview.io", Region: "us"}

	// EndpointDefault is where sign-in starts before a region redirect.
	EndpointDefault = EndpointEU

	// Endpoints lists every known region.
	Endpoints = []Endpoint{
		EndpointAE, EndpointAP, EndpointAU, EndpointCA, EndpointDE,
		EndpointEU, EndpointEU2, EndpointFR, EndpointJP, EndpointUS,
	}
)

// DefaultRegion is the region assumed when none has been resolved yet.
const DefaultRegion = "eu"

// EndpointByRegion looks up an endpoint by its region code.
func EndpointByRegion(region string) (Endpoint, bool) {
	for _, e := range Endpoints {
		if e.Region == region {
			return e, true
		}
	}
	return Endpoint{}, false
}

func (e Endpoint) baseURL() string {
	return "https://" + e.Hostname
}

// LoginURL returns the sign-in URL.
func (e Endpoint) LoginURL() string {
	return e.baseURL() + "/llu/auth/login"
}

// ConnectionsURL returns the URL listing followed patients.
func (e Endpoint) ConnectionsURL() string {
	return e.baseURL() + "/llu/connections/"
}

// GraphURL returns the glucose graph URL for a patient.
func (e Endpoint) GraphURL(patientID string) string {
	return fmt.Sprintf("%s/llu/connections/%s/graph", e.baseURL(), patientID)
}
