// Package identity is a small connect service answering with the credential resolved
// by the auth middleware.
package identity

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	middleware "github.com/washanhanzi/apikey-middleware"
	"github.com/washanhanzi/apikey-middleware/parser"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "apikey.v1.IdentityService"
	// WhoAmIProcedure answers with the owner of the api key.
	WhoAmIProcedure = "/" + ServiceName + "/WhoAmI"
	// DescribeProcedure streams the owner, the key name and the credential id.
	DescribeProcedure = "/" + ServiceName + "/Describe"
)

var errNoCredential = errors.New("no credential in context")

func credential(ctx context.Context) (parser.Credential, error) {
	cred, ok := middleware.FromContext[parser.Credential](ctx)
	if !ok {
		return cred, connect.NewError(connect.CodeUnauthenticated, errNoCredential)
	}
	return cred, nil
}

func WhoAmI(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.StringValue], error) {
	cred, err := credential(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.String(cred.Owner)), nil
}

func Describe(ctx context.Context, _ *connect.Request[emptypb.Empty], stream *connect.ServerStream[wrapperspb.StringValue]) error {
	cred, err := credential(ctx)
	if err != nil {
		return err
	}
	for _, v := range []string{cred.Owner, cred.Name, cred.ID.String()} {
		if err := stream.Send(wrapperspb.String(v)); err != nil {
			return err
		}
	}
	return nil
}

// NewHandler returns the mux pattern and handler serving both procedures.
func NewHandler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(WhoAmIProcedure, connect.NewUnaryHandler(WhoAmIProcedure, WhoAmI, opts...))
	mux.Handle(DescribeProcedure, connect.NewServerStreamHandler(DescribeProcedure, Describe, opts...))
	return "/" + ServiceName + "/", mux
}

type Client struct {
	whoAmI   *connect.Client[emptypb.Empty, wrapperspb.StringValue]
	describe *connect.Client[emptypb.Empty, wrapperspb.StringValue]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		whoAmI:   connect.NewClient[emptypb.Empty, wrapperspb.StringValue](httpClient, baseURL+WhoAmIProcedure, opts...),
		describe: connect.NewClient[emptypb.Empty, wrapperspb.StringValue](httpClient, baseURL+DescribeProcedure, opts...),
	}
}

func (c *Client) WhoAmI(ctx context.Context, req *connect.Request[emptypb.Empty]) (string, error) {
	res, err := c.whoAmI.CallUnary(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Msg.GetValue(), nil
}

func (c *Client) Describe(ctx context.Context, req *connect.Request[emptypb.Empty]) ([]string, error) {
	stream, err := c.describe.CallServerStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	var values []string
	for stream.Receive() {
		values = append(values, stream.Msg().GetValue())
	}
	return values, stream.Err()
}

type whoAmIResponse struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// HTTPWhoAmI is the plain http counterpart of WhoAmI.
func HTTPWhoAmI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	cred, err := credential(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": errNoCredential.Error()})
		return
	}
	json.NewEncoder(w).Encode(whoAmIResponse{
		ID:    cred.ID.String(),
		Owner: cred.Owner,
		Name:  cred.Name,
	})
}
