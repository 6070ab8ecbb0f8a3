// Package oauth1 signs requests with OAuth 1.0a as defined in RFC 5849.
//
// # Signature Methods
//
// HMACSHA1 and PlainText use the consumer and token secrets. RSA-SHA1
// signs with a private key held by the provider:
//
//	key, err := oauth1.ParseRSAPrivateKeyPEM(pemBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	provider, err := oauth1.NewRSASHA1(key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Signing Requests
//
// An Authenticator is a rest.Authenticator. Each request gets a fresh nonce
// and timestamp, the signature base string is built from the query and
// URL-encoded form parameters plus the protocol parameters, and the result
// is sent in an Authorization header or as request parameters:
//
//	a, err := oauth1.ForProtectedResource("key", "secret", accessToken,
//	    oauth1.WithSignatureProvider(provider),
//	    oauth1.WithParameterHandling(oauth1.AsParameters),
//	)
//
// # Three-Legged Flow
//
// Flow runs the token exchange through a rest.Client:
//
//	flow, err := oauth1.NewFlow(client, oauth1.FlowConfig{
//	    ConsumerKey:    "key",
//	    ConsumerSecret: "secret",
//	})
//
//	requestToken, err := flow.RequestToken(ctx)
//	authURL, err := flow.AuthorizationURL(requestToken)
//	// the resource owner authorizes and returns a verifier
//	accessToken, err := flow.AccessToken(ctx, requestToken, verifier)
//	api, err := flow.Client(accessToken)
//
// Token responses must be &-joined key=value pairs with oauth_token and
// oauth_token_secret. A response containing a line break fails with
// rest.ErrUnexpectedNewline.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc5849
package oauth1
