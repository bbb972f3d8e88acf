package apiclient

import "fmt"

// Location says where a value lands in the wire request.
type Location int

// Request locations. LocationAuto defers the decision to the classifier.
const (
	LocationAuto Location = iota
	LocationBody
	LocationQuery
	LocationHeader
	LocationPlaceholder
	LocationFile
)

var locationNames = map[Location]string{
	LocationAuto:        "auto",
	LocationBody:        "body",
	LocationQuery:       "query",
	LocationHeader:      "header",
	LocationPlaceholder: "placeholder",
	LocationFile:        "file",
}

func (l Location) String() string {
	if s, ok := locationNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Location(%d)", int(l))
}

// ParseLocation maps a location name back to a Location. It accepts "path"
// as an alias for "placeholder".
func ParseLocation(s string) (Location, error) {
	if s == "path" {
		return LocationPlaceholder, nil
	}
	for l, name := range locationNames {
		if name == s {
			return l, nil
		}
	}
	return LocationAuto, fmt.Errorf("%w: unknown location %q", ErrConfiguration, s)
}

// Field is a named value bound to a request location. A Field is also a
// Contributor that contributes itself.
type Field struct {
	Name     string
	Value    any
	Location Location
}

// Header returns a header field.
func Header(name string, value any) Field {
	return Field{Name: name, Value: value, Location: LocationHeader}
}

// Query returns a query-string field.
func Query(name string, value any) Field {
	return Field{Name: name, Value: value, Location: LocationQuery}
}

// Body returns a body field.
func Body(name string, value any) Field {
	return Field{Name: name, Value: value, Location: LocationBody}
}

// Placeholder returns a field substituted into the URL template.
func Placeholder(name string, value any) Field {
	return Field{Name: name, Value: value, Location: LocationPlaceholder}
}

// Contribute returns the field itself.
func (f Field) Contribute(*Client, *Invocation) ([]Contributor, error) {
	return []Contributor{f}, nil
}
