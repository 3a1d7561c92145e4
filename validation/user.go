package validation

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxUsernameLength    = 30
	MinPasswordLength    = 8
	MaxPasswordLength    = 100
	MaxEmailLength       = 255
	MaxDeviceTokenLength = 255
	ResetCodeDigits      = 8
)

// UserInput is a complete set of account fields.
type UserInput struct {
	Username string
	Email    string
	Password string
}

// AdminUserInput is an account provisioned by an administrator.
type AdminUserInput struct {
	UserInput
	Admin bool
}

// UserPatch holds the account fields present in a partial update.
type UserPatch struct {
	Username *string
	Email    *string
	Password *string
}

// Credentials identify an account by username or email.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// ResetInput redeems a password reset code.
type ResetInput struct {
	Email    string
	Code     int64
	Password string
}

// Username validates and trims a username.
func Username(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if err := checkText("username", value, 1, MaxUsernameLength); err != nil {
		return "", err
	}
	return value, nil
}

// Password validates password length and character classes.
func Password(raw string) (string, error) {
	if raw == "" {
		return "", fail("password", "is not allowed to be empty")
	}
	length := utf8.RuneCountInString(raw)
	if length < MinPasswordLength {
		return "", fail("password", "length must be at least %d characters long", MinPasswordLength)
	}
	if length > MaxPasswordLength {
		return "", fail("password", "length must be less than or equal to %d characters long", MaxPasswordLength)
	}
	var upper, lower, digit bool
	for _, r := range raw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return "", fail("password", "must contain at least one uppercase letter, one lowercase letter and one number")
	}
	return raw, nil
}

// Email validates an address and returns it lower-cased.
func Email(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fail("email", "is not allowed to be empty")
	}
	if len(value) > MaxEmailLength {
		return "", fail("email", "length must be less than or equal to %d characters long", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", fail("email", "must be a valid email")
	}
	at := strings.LastIndex(value, "@")
	domain := value[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", fail("email", "must be a valid email")
	}
	return strings.ToLower(value), nil
}

func (b Bag) username(required bool) (*string, error) {
	raw, present, err := b.stringField("username", required)
	if err != nil || !present {
		return nil, err
	}
	value, err := Username(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (b Bag) email(required bool) (*string, error) {
	raw, present, err := b.stringField("email", required)
	if err != nil || !present {
		return nil, err
	}
	value, err := Email(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (b Bag) password(required bool) (*string, error) {
	raw, present, err := b.stringField("password", required)
	if err != nil || !present {
		return nil, err
	}
	value, err := Password(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (b Bag) userInput() (UserInput, error) {
	username, err := b.username(true)
	if err != nil {
		return UserInput{}, err
	}
	email, err := b.email(true)
	if err != nil {
		return UserInput{}, err
	}
	password, err := b.password(true)
	if err != nil {
		return UserInput{}, err
	}
	return UserInput{Username: *username, Email: *email, Password: *password}, nil
}

// Registration validates a self-service sign-up.
func Registration(b Bag) (UserInput, error) {
	in, err := b.userInput()
	if err != nil {
		return UserInput{}, err
	}
	if err := b.allowOnly("username", "email", "password"); err != nil {
		return UserInput{}, err
	}
	return in, nil
}

// UserUpdate validates a full account update.
func UserUpdate(b Bag) (UserInput, error) {
	return Registration(b)
}

// AdminUser validates an account provisioned or replaced by an administrator.
func AdminUser(b Bag) (AdminUserInput, error) {
	in, err := b.userInput()
	if err != nil {
		return AdminUserInput{}, err
	}
	admin, err := b.boolField("admin")
	if err != nil {
		return AdminUserInput{}, err
	}
	if err := b.allowOnly("username", "email", "password", "admin"); err != nil {
		return AdminUserInput{}, err
	}
	out := AdminUserInput{UserInput: in}
	if admin != nil {
		out.Admin = *admin
	}
	return out, nil
}

// UserPatchInput validates a partial account update.
func UserPatchInput(b Bag) (UserPatch, error) {
	if err := b.atLeastOne("username", "email", "password"); err != nil {
		return UserPatch{}, err
	}
	username, err := b.username(false)
	if err != nil {
		return UserPatch{}, err
	}
	email, err := b.email(false)
	if err != nil {
		return UserPatch{}, err
	}
	password, err := b.password(false)
	if err != nil {
		return UserPatch{}, err
	}
	if err := b.allowOnly("username", "email", "password"); err != nil {
		return UserPatch{}, err
	}
	return UserPatch{Username: username, Email: email, Password: password}, nil
}

// Login validates credentials. Exactly one of username and email identifies the account.
// The password is only checked for presence; strength rules apply when it is set.
func Login(b Bag) (Credentials, error) {
	var creds Credentials
	switch {
	case b.has("email"):
		email, err := b.email(true)
		if err != nil {
			return Credentials{}, err
		}
		creds.Email = *email
	case b.has("username"):
		username, err := b.username(true)
		if err != nil {
			return Credentials{}, err
		}
		creds.Username = *username
	default:
		return Credentials{}, &Error{Field: "value", Message: `"value" must contain at least one of [username, email]`}
	}
	if b.has("email") && b.has("username") {
		return Credentials{}, &Error{Field: "value", Message: `"value" contains a conflict between exclusive peers [username, email]`}
	}
	password, _, err := b.stringField("password", true)
	if err != nil {
		return Credentials{}, err
	}
	if password == "" {
		return Credentials{}, fail("password", "is not allowed to be empty")
	}
	creds.Password = password
	if err := b.allowOnly("username", "email", "password"); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// ForgotPassword validates a reset code request.
func ForgotPassword(b Bag) (string, error) {
	email, err := b.email(true)
	if err != nil {
		return "", err
	}
	if err := b.allowOnly("email"); err != nil {
		return "", err
	}
	return *email, nil
}

// ResetPassword validates a reset code redemption.
func ResetPassword(b Bag) (ResetInput, error) {
	email, err := b.email(true)
	if err != nil {
		return ResetInput{}, err
	}
	raw, ok := b["code"]
	if !ok {
		return ResetInput{}, fail("code", "is required")
	}
	code, err := resetCode(raw)
	if err != nil {
		return ResetInput{}, err
	}
	password, err := b.password(true)
	if err != nil {
		return ResetInput{}, err
	}
	if err := b.allowOnly("email", "code", "password"); err != nil {
		return ResetInput{}, err
	}
	return ResetInput{Email: *email, Code: code, Password: *password}, nil
}

func resetCode(raw any) (int64, error) {
	var digits string
	switch v := raw.(type) {
	case string:
		digits = strings.TrimSpace(v)
	default:
		n, err := integer("code", raw)
		if err != nil {
			return 0, err
		}
		digits = strconv.FormatInt(n, 10)
	}
	if len(digits) != ResetCodeDigits {
		return 0, fail("code", "must be %d digits", ResetCodeDigits)
	}
	code, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || code < 0 {
		return 0, fail("code", "must be %d digits", ResetCodeDigits)
	}
	return code, nil
}

// DeviceToken validates a push device token. A nil result clears the token.
func DeviceToken(b Bag) (*string, error) {
	raw, ok := b["deviceToken"]
	if !ok {
		return nil, fail("deviceToken", "is required")
	}
	var token *string
	if raw != nil {
		s, ok := raw.(string)
		if !ok {
			return nil, fail("deviceToken", "must be a string")
		}
		s = strings.TrimSpace(s)
		if err := checkText("deviceToken", s, 1, MaxDeviceTokenLength); err != nil {
			return nil, err
		}
		token = &s
	}
	if err := b.allowOnly("deviceToken"); err != nil {
		return nil, err
	}
	return token, nil
}
