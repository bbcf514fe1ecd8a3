package payment

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // the gateway's signature scheme is HMAC-SHA1
	"encoding/base64"
	"net/http"
)

const (
	DefaultScheme      = "PWS"
	DefaultNonceHeader = "x-rnd"
)

// Signer carries the wire names the gateway expects. The zero value uses
// DefaultScheme and DefaultNonceHeader.
type Signer struct {
	Scheme      string
	NonceHeader string
}

// Signed is everything the caller needs to transmit one signed request.
// Body is the literal HTTP body; EncodedBody is only an input to the
// signature and is never sent.
type Signed struct {
	Nonce         string
	NonceHeader   string
	Authorization string
	Signature     string
	EncodedBody   string
	Body          []byte
}

// Headers returns the two authentication headers.
func (s *Signed) Headers() http.Header {
	h := make(http.Header, 2)
	s.Apply(h)
	return h
}

// Apply sets the authentication headers on h.
func (s *Signed) Apply(h http.Header) {
	// Set via the map so the nonce header keeps the gateway's lower-case spelling.
	h[s.NonceHeader] = []string{s.Nonce}
	h.Set("Authorization", s.Authorization)
}

// Sign serializes payload and computes the gateway authentication headers:
//
//	body      = compact JSON of payload
//	encoded   = base64(body)
//	signature = base64(HMAC-SHA1(secretKey, nonce + apiKey + encoded))
//	auth      = "<scheme> <apiKey>:<signature>"
//
// Sign is a pure function of its inputs.
func (s Signer) Sign(apiKey, secretKey, nonce string, payload *Payload) (*Signed, error) {
	switch {
	case apiKey == "":
		return nil, &ConfigurationError{Missing: "api key"}
	case secretKey == "":
		return nil, &ConfigurationError{Missing: "secret key"}
	case nonce == "":
		return nil, &ConfigurationError{Missing: "nonce"}
	}
	if payload == nil {
		payload = NewPayload()
	}
	if err := payload.Err(); err != nil {
		return nil, err
	}

	body, err := payload.Serialize()
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(body)
	sig := computeSignature(secretKey, nonce+apiKey+encoded)

	return &Signed{
		Nonce:         nonce,
		NonceHeader:   s.nonceHeader(),
		Authorization: s.scheme() + " " + apiKey + ":" + sig,
		Signature:     sig,
		EncodedBody:   encoded,
		Body:          body,
	}, nil
}

// Sign signs with the default scheme and nonce header.
func Sign(apiKey, secretKey, nonce string, payload *Payload) (*Signed, error) {
	return Signer{}.Sign(apiKey, secretKey, nonce, payload)
}

// Verify reports whether signature matches the given request parts.
// The comparison is constant time.
func Verify(apiKey, secretKey, nonce string, body []byte, signature string) bool {
	encoded := base64.StdEncoding.EncodeToString(body)
	expected := computeSignature(secretKey, nonce+apiKey+encoded)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func computeSignature(secretKey, input string) string {
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(input))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s Signer) scheme() string {
	if s.Scheme == "" {
		return DefaultScheme
	}
	return s.Scheme
}

func (s Signer) nonceHeader() string {
	if s.NonceHeader == "" {
		return DefaultNonceHeader
	}
	return s.NonceHeader
}
