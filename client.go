package middleware

type apiKeyTokenGetter struct {
	value string
}

// NewAPIKeyTokenGetter returns a ClientTokenGetter sending `Authorization: ApiKey <apiKey>`
func NewAPIKeyTokenGetter(apiKey string) ClientTokenGetter {
	return apiKeyTokenGetter{value: SchemeAPIKey + " " + apiKey}
}

func (g apiKeyTokenGetter) Get() (string, string) {
	return HeaderAuthorization, g.value
}
