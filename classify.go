package apiclient

import (
	"fmt"
	"net/http"
	"strings"
)

var verbLocations = map[string]Location{
	http.MethodGet:     LocationQuery,
	http.MethodHead:    LocationQuery,
	http.MethodOptions: LocationQuery,
	http.MethodTrace:   LocationQuery,
	http.MethodPost:    LocationBody,
	http.MethodPut:     LocationBody,
	http.MethodPatch:   LocationBody,
	http.MethodDelete:  LocationBody,
}

// Classify decides where a parameter goes. An explicit parameter location
// wins, then a non-auto method default, then the rule for the verb.
func Classify(param Param, verb string, methodDefault Location) (Location, error) {
	if param.Location != LocationAuto {
		return param.Location, nil
	}
	if methodDefault != LocationAuto {
		return methodDefault, nil
	}
	return verbLocation(verb)
}

// verbLocation returns the default location for an HTTP verb.
func verbLocation(verb string) (Location, error) {
	if l, ok := verbLocations[strings.ToUpper(verb)]; ok {
		return l, nil
	}
	return LocationAuto, fmt.Errorf("%w: %q", ErrUnknownVerb, verb)
}
