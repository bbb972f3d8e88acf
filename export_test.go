package apiclient

// Test-only exports for internal functions.
var (
	ParamsOf            = paramsOf
	TagOptions          = tagOptions
	TagContains         = tagContains
	JSONFieldName       = jsonFieldName
	VerbLocation        = verbLocation
	IsPrimitive         = isPrimitive
	FormatValue         = formatValue
	WalkPath            = walkPath
	MatchesMediaType    = matchesMediaType
	DecodeResponseBody  = decodeResponseBody
	GenerateOperationID = generateOperationID
	PathTokens          = pathTokens
	ReadFileResponse    = readFileResponse
	TypeToSchema        = typeToSchema
)

// MaxContributorDepth exposes the contributor expansion limit.
const MaxContributorDepth = maxContributorDepth

// WithInvocation returns a context carrying inv, as Client does before
// dispatch.
var WithInvocation = withValue[*Invocation]

// SpoolPath returns the temporary file backing f, or "" when it is held in
// memory.
func (f *FileResponse) SpoolPath() string {
	if f.file == nil {
		return ""
	}
	return f.file.Name()
}
