package adrive

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/dustinxie/ecc"
	"github.com/google/uuid"
)

const deviceSessionPath = "/users/v1/users/device/create_session"

// deviceAppID is the application id mixed into every device signature.
const deviceAppID = "5dde4e1bdf9e4966b387ba58f4b3fdc3"

// Identity reported for the device when registering its public key.
const (
	deviceName  = "alidrive-go"
	deviceModel = "Linux"
)

const privateKeyBytes = 32

// DeviceSession signs requests on behalf of a registered device. The key
// stays constant across runs so the server keeps recognizing the device.
type DeviceSession struct {
	deviceID string
	key      *ecdsa.PrivateKey

	mu      sync.Mutex
	sigUser string
	sig     string
}

// NewDeviceID returns a fresh random device id.
func NewDeviceID() string {
	return uuid.NewString()
}

// GenerateDeviceKey returns a new secp256k1 private key as hex.
func GenerateDeviceKey() (string, error) {
	n := ecc.P256k1().Params().N

	for {
		b := make([]byte, privateKeyBytes)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("adrive: generating device key: %w", err)
		}

		d := new(big.Int).SetBytes(b)
		if d.Sign() > 0 && d.Cmp(n) < 0 {
			return hex.EncodeToString(b), nil
		}
	}
}

// NewDeviceSession builds a signer from a device id and a hex private key
// as produced by GenerateDeviceKey.
func NewDeviceSession(deviceID, keyHex string) (*DeviceSession, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device_id", ErrMissingField)
	}

	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("adrive: decoding device key: %w", err)
	}

	if len(raw) == 0 || len(raw) > privateKeyBytes {
		return nil, errors.New("adrive: device key must be 1 to 32 bytes")
	}

	curve := ecc.P256k1()
	x, y := curve.ScalarBaseMult(raw)

	return &DeviceSession{
		deviceID: deviceID,
		key: &ecdsa.PrivateKey{
			PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
			D:         new(big.Int).SetBytes(raw),
		},
	}, nil
}

// DeviceID returns the device id sent as x-device-id.
func (d *DeviceSession) DeviceID() string {
	return d.deviceID
}

// PublicKeyHex returns the uncompressed public key: "04" || X || Y.
func (d *DeviceSession) PublicKeyHex() string {
	buf := make([]byte, 1+2*privateKeyBytes)
	buf[0] = 0x04
	d.key.X.FillBytes(buf[1 : 1+privateKeyBytes])
	d.key.Y.FillBytes(buf[1+privateKeyBytes:])

	return hex.EncodeToString(buf)
}

// Signature returns the x-signature value for userID. It is computed once
// per user and cached.
func (d *DeviceSession) Signature(userID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sig != "" && d.sigUser == userID {
		return d.sig, nil
	}

	payload := fmt.Sprintf("%s:%s:%s:%d", deviceAppID, d.deviceID, userID, 0)
	hash := sha256.Sum256([]byte(payload))

	sig, err := ecc.SignBytes(d.key, hash[:], ecc.RecID|ecc.LowerS)
	if err != nil {
		return "", fmt.Errorf("adrive: signing device payload: %w", err)
	}

	d.sig = hex.EncodeToString(sig)
	d.sigUser = userID

	return d.sig, nil
}

// refreshTokener is implemented by token sources that can report the
// current refresh token, which device registration includes.
type refreshTokener interface {
	RefreshToken() string
}

type createSessionRequest struct {
	DeviceName   string `json:"deviceName"`
	ModelName    string `json:"modelName"`
	Nonce        int    `json:"nonce"`
	PubKey       string `json:"pubKey"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type createSessionResponse struct {
	Result  bool   `json:"result"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateDeviceSession registers the device public key with the service.
// Requests made before registration, or after the server reports the
// session invalid, are rejected with DeviceSessionSignatureInvalid.
func (c *Client) CreateDeviceSession(ctx context.Context) error {
	if c.device == nil {
		return errors.New("adrive: client has no device session")
	}

	if _, err := c.Account(ctx); err != nil {
		return err
	}

	req := createSessionRequest{
		DeviceName: deviceName,
		ModelName:  deviceModel,
		PubKey:     c.device.PublicKeyHex(),
	}

	if rt, ok := c.token.(refreshTokener); ok {
		req.RefreshToken = rt.RefreshToken()
	}

	c.logger.Info("creating device session", slog.String("device_id", c.device.DeviceID()))

	var resp createSessionResponse
	if err := c.postJSON(ctx, deviceSessionPath, req, "", &resp); err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("adrive: device session rejected: %s: %s", resp.Code, resp.Message)
	}

	return nil
}
