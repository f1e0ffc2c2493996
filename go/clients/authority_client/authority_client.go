package authority_client

import (
	"github.com/mcdev12/gameday/go/clients"
)

// AuthorityClient talks to the remote context authority. The authority speaks
// a preflight-avoiding dialect: actions go in a query parameter on GET, and
// writes are POSTed as JSON in a text/plain body.
type AuthorityClient struct {
	*clients.BaseClient
}

func NewAuthorityClient(baseURL string) *AuthorityClient {
	client := &AuthorityClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
	client.SetHeader("Content-Type", PlainTextContentType)
	return client
}
