package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/models"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong password
var ErrInvalidCredentials = errors.New("incorrect username or password")

// RegisterRequest is the body of a registration call
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,unicodealnum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,maxbytes,hasdigit,hasupper"`
}

// RegistrationError lists every rule a registration request broke
type RegistrationError struct {
	Problems []string
}

func (e *RegistrationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Service implements registration, login and token authentication
type Service struct {
	users    UserStore
	tokens   *TokenIssuer
	validate *validator.Validate
}

type rule struct {
	tag string
	fn  validator.Func
}

var registrationRules = []rule{
	{tag: "hasdigit", fn: containsRune(unicode.IsDigit)},
	{tag: "hasupper", fn: containsRune(unicode.IsUpper)},
	{tag: "unicodealnum", fn: onlyRunes(func(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) })},
	{tag: "maxbytes", fn: func(fl validator.FieldLevel) bool { return len(fl.Field().String()) <= MaxPasswordBytes }},
}

// NewService panics if the registration rules cannot be installed
func NewService(users UserStore, tokens *TokenIssuer) *Service {
	v := validator.New()
	if err := registerRules(v, registrationRules); err != nil {
		panic(err)
	}

	return &Service{
		users:    users,
		tokens:   tokens,
		validate: v,
	}
}

func registerRules(v *validator.Validate, rules []rule) error {
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return fmt.Errorf("registering %q validation: %w", r.tag, err)
		}
	}
	return nil
}

func containsRune(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), pred) >= 0
	}
}

// onlyRunes matches when every rune satisfies pred. Letters and digits
// from any script count, unlike validator's ASCII-only alphanum.
func onlyRunes(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), func(r rune) bool { return !pred(r) }) < 0
	}
}

// Register creates the user and returns a token for it
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Token, error) {
	if err := s.validateRegistration(req); err != nil {
		return Token{}, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return Token{}, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return Token{}, err
	}

	log.Info().Str("username", user.Username).Msg("Registered user")
	return s.tokens.Issue(user.Username)
}

// Login checks the credentials and returns a new token
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, err
	}
	if !CheckPassword(user.Password, password) {
		log.Debug().Str("username", username).Msg("Password mismatch")
		return Token{}, ErrInvalidCredentials
	}
	return s.tokens.Issue(user.Username)
}

// Authenticate resolves a bearer token to a registered user
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	username, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: unknown user %s", ErrInvalidToken, username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) validateRegistration(req RegisterRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	regErr := &RegistrationError{}
	for _, fe := range fieldErrs {
		regErr.Problems = append(regErr.Problems, describe(fe))
	}
	return regErr
}

func describe(fe validator.FieldError) string {
	switch fe.Field() + "." + fe.Tag() {
	case "Username.unicodealnum":
		return "Username must contain only alphanumeric characters"
	case "Username.min", "Username.max":
		return "Username must be between 3 and 50 characters"
	case "Email.email":
		return "Email must be a valid email address"
	case "Password.min":
		return "Password must be at least 8 characters"
	case "Password.maxbytes":
		return fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes)
	case "Password.hasdigit":
		return "Password must contain at least one number"
	case "Password.hasupper":
		return "Password must contain at least one uppercase letter"
	}
	return fmt.Sprintf("%s is required", fe.Field())
}
