package subscription

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyPaymentSignature checks the signature Razorpay hands to the checkout
// callback: HMAC-SHA256 over "<paymentID>|<subscriptionID>" keyed with the
// API key secret, hex encoded.
func VerifyPaymentSignature(paymentID, subscriptionID, signatureHex, secret string) bool {
	message := paymentID + "|" + subscriptionID
	return verifyHMACSHA256([]byte(message), signatureHex, secret)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw, unparsed request body. The body must never be re-serialized before
// verification; any re-encoding would produce a different digest.
func VerifyWebhookSignature(rawBody []byte, signatureHex, secret string) bool {
	return verifyHMACSHA256(rawBody, signatureHex, secret)
}

func verifyHMACSHA256(payload []byte, signatureHex, secret string) bool {
	sig := strings.TrimSpace(signatureHex)
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}
