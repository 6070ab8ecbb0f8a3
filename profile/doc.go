// Package profile loads client profiles from YAML files.
//
// A profile names the base URL, transport settings and credentials used to
// build a rest.Client:
//
//	base_url: https://api.example.com/v1/
//	timeout: 30s
//	user_agent: restkit
//	rate_limit: 5
//	headers:
//	  Accept: application/json
//	auth:
//	  scheme: oauth1
//	  oauth1:
//	    consumer_key: ${API_CONSUMER_KEY}
//	    consumer_secret: ${API_CONSUMER_SECRET}
//	    token: ${API_TOKEN}
//	    token_secret: ${API_TOKEN_SECRET}
//	    signature_method: HMAC-SHA1
//
// # Authentication Schemes
//
// The auth.scheme key selects the authenticator:
//
//   - basic: Authorization: Basic on every request
//   - hidden-basic: credentials sent as request parameters
//   - digest: RFC 2617 Digest, answered after the first challenge
//   - oauth1: OAuth 1.0a signing with HMAC-SHA1, RSA-SHA1 or PLAINTEXT
//
// Environment references in the form ${NAME} are expanded before the file
// is decoded. Relative private_key_file paths are resolved against the
// profile directory.
package profile
