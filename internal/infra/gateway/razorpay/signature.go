package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentSignature computes the checkout signature Razorpay sends back to
// the client: HMAC-SHA256 over "orderID|paymentID" keyed with the key secret.
func PaymentSignature(keySecret, orderID, paymentID string) string {
	h := hmac.New(sha256.New, []byte(keySecret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyPaymentSignature compares the reported signature against the locally
// recomputed one in constant time.
func VerifyPaymentSignature(keySecret, orderID, paymentID, signature string) bool {
	expected := PaymentSignature(keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header: HMAC-SHA256
// over the raw request body keyed with the webhook secret. The webhook
// secret is configured independently of the key secret.
func VerifyWebhookSignature(webhookSecret string, body []byte, signature string) bool {
	h := hmac.New(sha256.New, []byte(webhookSecret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
