package register

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Step names reported to clients as last_step
const (
	StepCreated    = "created"
	StepVerified   = "verified"
	StepRegistered = "registered"
)

// VerificationResult is the response body for the verification endpoints
type VerificationResult struct {
	TokenID  string    `json:"token_id"`
	Date     time.Time `json:"date"`
	Result   bool      `json:"result"`
	LastStep string    `json:"last_step"`
}

// VerificationControllerRoutes holds the mounted paths
type VerificationControllerRoutes struct {
	Verification string
	Approbation  string
}

// VerificationController exposes the token completion endpoints. Outcomes map
// to status codes: 200 applied or not-applicable, 400 invalid token, 412
// expired, 428 wrong process for the configured mode, 404 subject missing.
type VerificationController struct {
	Logger       Logger
	Registrar    Registrar
	Codec        TokenCodec
	Routes       *VerificationControllerRoutes
	ErrorHandler router.ErrorHandler
}

// VerificationControllerOption configures the controller
type VerificationControllerOption func(*VerificationController) *VerificationController

// WithControllerRegistrar sets the registrar
func WithControllerRegistrar(r Registrar) VerificationControllerOption {
	return func(c *VerificationController) *VerificationController {
		c.Registrar = r
		return c
	}
}

// WithControllerCodec sets the token codec used to classify failures
func WithControllerCodec(codec TokenCodec) VerificationControllerOption {
	return func(c *VerificationController) *VerificationController {
		c.Codec = codec
		return c
	}
}

// WithControllerLogger sets the logger
func WithControllerLogger(logger Logger) VerificationControllerOption {
	return func(c *VerificationController) *VerificationController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// NewVerificationController builds the controller with default routes
func NewVerificationController(opts ...VerificationControllerOption) *VerificationController {
	c := &VerificationController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &VerificationControllerRoutes{
			Verification: "/api/auth/1.0/verification/:token",
			Approbation:  "/api/auth/1.0/approbation/:token",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Registrar == nil {
		panic("register: missing Registrar in verification controller")
	}

	if c.Codec == nil {
		panic("register: missing TokenCodec in verification controller")
	}

	return c
}

// RegisterVerificationRoutes mounts the completion endpoints
func RegisterVerificationRoutes[T any](app router.Router[T], opts ...VerificationControllerOption) {
	controller := NewVerificationController(opts...)

	app.Get(controller.Routes.Verification, controller.VerificationGet).
		SetName("verification.get")

	app.Get(controller.Routes.Approbation, controller.ApprobationGet).
		SetName("approbation.get")
}

// VerificationGet completes a verification transition
func (c *VerificationController) VerificationGet(ctx router.Context) error {
	raw := ctx.Param("token")

	outcome, err := c.Registrar.VerifyUser(ctx.Context(), raw)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return c.respond(ctx, raw, outcome, TokenKindVerification)
}

// ApprobationGet completes an approbation transition. Only valid for
// two-step mode; other modes get 428.
func (c *VerificationController) ApprobationGet(ctx router.Context) error {
	raw := ctx.Param("token")

	outcome, err := c.Registrar.ApproveUser(ctx.Context(), raw)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return c.respond(ctx, raw, outcome, TokenKindApprobation)
}

func (c *VerificationController) respond(ctx router.Context, raw string, outcome Outcome, kind TokenKind) error {
	if outcome == OutcomeAbsent {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "user not found",
		})
	}

	if outcome == OutcomeApplied {
		token, _ := c.Codec.Decode(kind, raw)
		return ctx.JSON(router.StatusOK, c.result(ctx, token, raw, true))
	}

	// rejected: classify why so clients can tell invalid, expired, and
	// wrong-process apart from a plain no-op
	token, ok := c.Codec.DecodeExpired(raw)
	if !ok {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "invalid token",
		})
	}

	if !c.Codec.IsValid(raw) {
		return ctx.JSON(http.StatusPreconditionFailed, map[string]string{
			"error": "token expired",
		})
	}

	if c.wrongProcess(token, kind) {
		return ctx.JSON(http.StatusPreconditionRequired, map[string]string{
			"error": "token does not match the configured verification process",
		})
	}

	return ctx.JSON(router.StatusOK, c.result(ctx, token, raw, false))
}

func (c *VerificationController) wrongProcess(token Token, kind TokenKind) bool {
	if token.Kind() != kind {
		return true
	}

	mode := c.Registrar.VerificationMode()
	switch t := token.(type) {
	case *VerificationToken:
		return t.Process != mode
	case *ApprobationToken:
		return mode != ModeTwoStep
	default:
		return true
	}
}

func (c *VerificationController) result(ctx router.Context, token Token, raw string, applied bool) VerificationResult {
	result := VerificationResult{
		Result:   applied,
		LastStep: StepCreated,
	}

	if token != nil {
		result.TokenID = token.Common().ID
		result.Date = token.Common().IssuedAt
	}

	if user, ok := c.Registrar.GetUserByToken(ctx.Context(), raw); ok {
		result.LastStep = lastStep(user)
	}

	return result
}

func lastStep(user *User) string {
	switch {
	case user.IsRegistered():
		return StepRegistered
	case user.IsVerified():
		return StepVerified
	default:
		return StepCreated
	}
}

func defaultErrHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = errors.CodeInternal
	}

	return ctx.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
