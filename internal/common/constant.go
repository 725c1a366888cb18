package common

// AccessTokenHeaderName is the gRPC metadata key carrying the access token
// on authenticated requests.
const AccessTokenHeaderName = "access_token"
