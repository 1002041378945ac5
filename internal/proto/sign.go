package proto

import "crypto/ed25519"

// SignBody signs the encoded body bytes. Headers are deliberately outside
// the signature's scope.
func SignBody(priv ed25519.PrivateKey, body []byte) []byte {
	return ed25519.Sign(priv, body)
}

// VerifyBody checks a body signature against pub.
func VerifyBody(pub ed25519.PublicKey, body, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != SignatureBytes {
		return false
	}
	return ed25519.Verify(pub, body, sig)
}
