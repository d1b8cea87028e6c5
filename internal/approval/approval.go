// Package approval parks side-effecting tool calls until a human decides.
//
// Nothing is held server-side across the approval gap. Instead the gate
// issues signed tokens: an approval token binds one parked tool request
// (tool name, argument digest, user) and a turn checkpoint binds the set of
// pending calls to the reasoning turn that produced them. Both expire, and
// a token presented for a different request or turn is rejected. An
// approval token authorizes one call: the gate remembers spent token ids
// until they would have expired anyway.
package approval

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
)

// DefaultTTL bounds how long a parked request or turn stays resumable.
const DefaultTTL = 30 * time.Minute

const (
	purposeTool = "tool"
	purposeTurn = "turn"
	issuer      = "notesmcp"
)

var (
	// ErrStaleToken is returned for an expired or already spent token.
	ErrStaleToken = errors.New("approval: token expired")
	// ErrForeignToken is returned for a token issued for another request,
	// another turn, another user or by another signer.
	ErrForeignToken = errors.New("approval: token does not match this request")
	// ErrMalformedToken is returned when the token cannot be parsed.
	ErrMalformedToken = errors.New("approval: malformed token")
)

// Claims is the signed payload of approval tokens and turn checkpoints.
type Claims struct {
	Purpose string `json:"pur"`
	Tool    string `json:"tool,omitempty"`
	Binding string `json:"bnd"`
	jwt.RegisteredClaims
}

// Gate issues and checks approval tokens.
type Gate struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	spent  *cache.Cache
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate returns a Gate signing with secret. An empty secret is replaced
// by random bytes, so tokens do not outlive the process.
func NewGate(secret []byte, ttl time.Duration, opts ...Option) (*Gate, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("approval: generate secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &Gate{secret: secret, ttl: ttl, now: time.Now, spent: cache.New(ttl, ttl)}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ─── Tool requests ───────────────────────────────────────────────────────────

// Park wraps req in a PendingApproval with a token bound to req and subject.
func (g *Gate) Park(req protocol.ToolRequest, subject string) (protocol.PendingApproval, error) {
	binding, err := RequestDigest(req)
	if err != nil {
		return protocol.PendingApproval{}, err
	}
	tok, err := g.sign(Claims{Purpose: purposeTool, Tool: req.ToolName, Binding: binding}, subject)
	if err != nil {
		return protocol.PendingApproval{}, err
	}
	return protocol.PendingApproval{Request: req, Token: tok}, nil
}

// Authorize checks that token was issued by Park for exactly req and
// subject, and spends it. A second Authorize with the same token fails
// with ErrStaleToken.
func (g *Gate) Authorize(token string, req protocol.ToolRequest, subject string) error {
	claims, err := g.parse(token)
	if err != nil {
		return err
	}
	binding, err := RequestDigest(req)
	if err != nil {
		return err
	}
	if claims.Purpose != purposeTool || claims.Tool != req.ToolName ||
		claims.Binding != binding || claims.Subject != subject {
		return ErrForeignToken
	}
	if err := g.spent.Add(claims.ID, struct{}{}, g.ttl); err != nil {
		return fmt.Errorf("%w: already used", ErrStaleToken)
	}
	return nil
}

// RequestDigest hashes the tool name and arguments. encoding/json sorts map
// keys, so equal argument maps hash equally.
func RequestDigest(req protocol.ToolRequest) (string, error) {
	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return digest(struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}{req.ToolName, args})
}

// ─── Turn checkpoints ────────────────────────────────────────────────────────

// Checkpoint identifies a suspended reasoning turn.
type Checkpoint struct {
	TurnID        string   `json:"turn_id"`
	Query         string   `json:"query"`
	HistoryDigest string   `json:"history_digest"`
	CallIDs       []string `json:"call_ids"`
}

// Seal signs cp. The token is handed to the caller with the pending set.
func (g *Gate) Seal(cp Checkpoint) (string, error) {
	binding, err := checkpointDigest(cp)
	if err != nil {
		return "", err
	}
	claims := Claims{Purpose: purposeTurn, Binding: binding}
	claims.ID = cp.TurnID
	return g.sign(claims, "")
}

// Open verifies that token was sealed for cp.
func (g *Gate) Open(token string, cp Checkpoint) error {
	claims, err := g.parse(token)
	if err != nil {
		return err
	}
	binding, err := checkpointDigest(cp)
	if err != nil {
		return err
	}
	if claims.Purpose != purposeTurn || claims.ID != cp.TurnID || claims.Binding != binding {
		return ErrForeignToken
	}
	return nil
}

func checkpointDigest(cp Checkpoint) (string, error) {
	ids := append([]string(nil), cp.CallIDs...)
	sort.Strings(ids)
	cp.CallIDs = ids
	return digest(cp)
}

// ─── Signing ─────────────────────────────────────────────────────────────────

func (g *Gate) sign(claims Claims, subject string) (string, error) {
	now := g.now()
	claims.Issuer = issuer
	claims.Subject = subject
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(g.ttl))
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("approval: sign token: %w", err)
	}
	return tok, nil
}

func (g *Gate) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformedToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrStaleToken
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	default:
		return nil, fmt.Errorf("%w: %v", ErrForeignToken, err)
	}
}

// Digest hashes the JSON encoding of v, e.g. a conversation history to
// bind into a Checkpoint.
func Digest(v any) (string, error) { return digest(v) }

func digest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("approval: encode binding: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ─── Context ─────────────────────────────────────────────────────────────────

type approvedKey struct{}

// WithApproved marks tool as approved for the call carried by ctx.
func WithApproved(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, approvedKey{}, tool)
}

// Approved reports whether ctx carries an approval for tool.
func Approved(ctx context.Context, tool string) bool {
	v, _ := ctx.Value(approvedKey{}).(string)
	return v != "" && v == tool
}
