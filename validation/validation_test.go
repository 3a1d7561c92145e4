package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func bag(t *testing.T, body string) Bag {
	t.Helper()
	decoder := json.NewDecoder(bytes.NewReader([]byte(body)))
	decoder.UseNumber()
	var b Bag
	if err := decoder.Decode(&b); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return b
}

func wantMessage(t *testing.T, err error, want string) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error %q, got %v", want, err)
	}
	if verr.Message != want {
		t.Fatalf("expected %q, got %q", want, verr.Message)
	}
}

func TestRegistration(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"valid", `{"username":"alice","email":"Alice@Example.com","password":"Secret123"}`, ""},
		{"missing username", `{"email":"a@x.com","password":"Secret123"}`, `"username" is required`},
		{"blank username", `{"username":"  ","email":"a@x.com","password":"Secret123"}`, `"username" is not allowed to be empty`},
		{"long username", `{"username":"` + strings.Repeat("u", 31) + `","email":"a@x.com","password":"Secret123"}`, `"username" length must be less than or equal to 30 characters long`},
		{"username not string", `{"username":5,"email":"a@x.com","password":"Secret123"}`, `"username" must be a string`},
		{"bad email", `{"username":"alice","email":"not-an-email","password":"Secret123"}`, `"email" must be a valid email`},
		{"email without tld", `{"username":"alice","email":"a@localhost","password":"Secret123"}`, `"email" must be a valid email`},
		{"display name email", `{"username":"alice","email":"Alice <a@x.com>","password":"Secret123"}`, `"email" must be a valid email`},
		{"short password", `{"username":"alice","email":"a@x.com","password":"Se1"}`, `"password" length must be at least 8 characters long`},
		{"long password", `{"username":"alice","email":"a@x.com","password":"Aa1` + strings.Repeat("x", 98) + `"}`, `"password" length must be less than or equal to 100 characters long`},
		{"no digit", `{"username":"alice","email":"a@x.com","password":"Secretive"}`, `"password" must contain at least one uppercase letter, one lowercase letter and one number`},
		{"no upper", `{"username":"alice","email":"a@x.com","password":"secret123"}`, `"password" must contain at least one uppercase letter, one lowercase letter and one number`},
		{"unknown key", `{"username":"alice","email":"a@x.com","password":"Secret123","admin":true}`, `"admin" is not allowed`},
		{"first error wins", `{"username":"","email":"bad","password":"x"}`, `"username" is not allowed to be empty`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Registration(bag(t, tt.body))
			wantMessage(t, err, tt.want)
		})
	}
}

func TestRegistrationNormalizes(t *testing.T) {
	in, err := Registration(bag(t, `{"username":" alice ","email":" Alice@Example.COM ","password":"Secret123"}`))
	if err != nil {
		t.Fatalf("registration: %v", err)
	}
	if in.Username != "alice" {
		t.Fatalf("expected trimmed username, got %q", in.Username)
	}
	if in.Email != "alice@example.com" {
		t.Fatalf("expected lower-cased email, got %q", in.Email)
	}
}

func TestAdminUser(t *testing.T) {
	in, err := AdminUser(bag(t, `{"username":"root","email":"root@x.com","password":"Secret123","admin":true}`))
	if err != nil {
		t.Fatalf("admin user: %v", err)
	}
	if !in.Admin {
		t.Fatalf("expected admin flag")
	}
	_, err = AdminUser(bag(t, `{"username":"root","email":"root@x.com","password":"Secret123","admin":"yes"}`))
	wantMessage(t, err, `"admin" must be a boolean`)
}

func TestUserPatchInput(t *testing.T) {
	patch, err := UserPatchInput(bag(t, `{"username":"bob"}`))
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patch.Username == nil || *patch.Username != "bob" || patch.Email != nil || patch.Password != nil {
		t.Fatalf("unexpected patch %+v", patch)
	}

	_, err = UserPatchInput(bag(t, `{}`))
	wantMessage(t, err, `"value" must contain at least one of [username, email, password]`)

	_, err = UserPatchInput(bag(t, `{"password":"weak"}`))
	wantMessage(t, err, `"password" length must be at least 8 characters long`)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"email", `{"email":"a@x.com","password":"anything"}`, ""},
		{"username", `{"username":"alice","password":"anything"}`, ""},
		{"neither", `{"password":"anything"}`, `"value" must contain at least one of [username, email]`},
		{"both", `{"username":"alice","email":"a@x.com","password":"anything"}`, `"value" contains a conflict between exclusive peers [username, email]`},
		{"no password", `{"email":"a@x.com"}`, `"password" is required`},
		{"empty password", `{"email":"a@x.com","password":""}`, `"password" is not allowed to be empty`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Login(bag(t, tt.body))
			wantMessage(t, err, tt.want)
		})
	}
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		code int64
	}{
		{"string code", `{"email":"a@x.com","code":"12345678","password":"Secret123"}`, "", 12345678},
		{"numeric code", `{"email":"a@x.com","code":87654321,"password":"Secret123"}`, "", 87654321},
		{"short code", `{"email":"a@x.com","code":"1234","password":"Secret123"}`, `"code" must be 8 digits`, 0},
		{"letters", `{"email":"a@x.com","code":"abcdefgh","password":"Secret123"}`, `"code" must be 8 digits`, 0},
		{"missing code", `{"email":"a@x.com","password":"Secret123"}`, `"code" is required`, 0},
		{"weak password", `{"email":"a@x.com","code":"12345678","password":"password"}`, `"password" must contain at least one uppercase letter, one lowercase letter and one number`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ResetPassword(bag(t, tt.body))
			wantMessage(t, err, tt.want)
			if tt.want == "" && in.Code != tt.code {
				t.Fatalf("expected code %d, got %d", tt.code, in.Code)
			}
		})
	}
}

func TestDeviceToken(t *testing.T) {
	token, err := DeviceToken(bag(t, `{"deviceToken":" 123456 "}`))
	if err != nil || token == nil || *token != "123456" {
		t.Fatalf("expected trimmed token, got %v, %v", token, err)
	}
	token, err = DeviceToken(bag(t, `{"deviceToken":null}`))
	if err != nil || token != nil {
		t.Fatalf("expected nil token, got %v, %v", token, err)
	}
	_, err = DeviceToken(bag(t, `{}`))
	wantMessage(t, err, `"deviceToken" is required`)
}

func TestTaskCreate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"minimal", `{"title":"Buy milk"}`, ""},
		{"full", `{"title":"Buy milk","details":"2 litres","deadline":"2030-01-02","parent":3,"difficulty":5,"lat":45.5,"lng":-73.6,"list":7,"favourite":true,"done":false}`, ""},
		{"missing title", `{"details":"x"}`, `"title" is required`},
		{"blank title", `{"title":"   "}`, `"title" is not allowed to be empty`},
		{"long title", `{"title":"` + strings.Repeat("t", 51) + `"}`, `"title" length must be less than or equal to 50 characters long`},
		{"long details", `{"title":"t","details":"` + strings.Repeat("d", 1001) + `"}`, `"details" length must be less than or equal to 1000 characters long`},
		{"bad deadline", `{"title":"t","deadline":"tomorrow"}`, `"deadline" must be a valid date`},
		{"zero parent", `{"title":"t","parent":0}`, `"parent" must be a positive number`},
		{"huge list", `{"title":"t","list":10000000000}`, `"list" must be less than or equal to 9999999999`},
		{"overflowing list", `{"title":"t","list":1e19}`, `"list" must be less than or equal to 9999999999`},
		{"overflowing difficulty", `{"title":"t","difficulty":1e20}`, `"difficulty" must be less than or equal to 5`},
		{"fractional parent", `{"title":"t","parent":1.5}`, `"parent" must be an integer`},
		{"difficulty low", `{"title":"t","difficulty":0}`, `"difficulty" must be greater than or equal to 1`},
		{"difficulty high", `{"title":"t","difficulty":6}`, `"difficulty" must be less than or equal to 5`},
		{"difficulty fraction", `{"title":"t","difficulty":2.5}`, `"difficulty" must be an integer`},
		{"lat out of range", `{"title":"t","lat":91,"lng":0}`, `"lat" must be less than or equal to 90`},
		{"lng out of range", `{"title":"t","lat":0,"lng":-181}`, `"lng" must be greater than or equal to -180`},
		{"lat without lng", `{"title":"t","lat":10}`, `"lat" and "lng" must be provided together`},
		{"lng without lat", `{"title":"t","lng":10}`, `"lat" and "lng" must be provided together`},
		{"lat null lng set", `{"title":"t","lat":null,"lng":10}`, `"lat" and "lng" must be provided together`},
		{"favourite not bool", `{"title":"t","favourite":"yes"}`, `"favourite" must be a boolean`},
		{"unknown key", `{"title":"t","user":1}`, `"user" is not allowed`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TaskCreate(bag(t, tt.body))
			wantMessage(t, err, tt.want)
		})
	}
}

func TestTaskCreateDefaults(t *testing.T) {
	in, err := TaskCreate(bag(t, `{"title":" Buy milk "}`))
	if err != nil {
		t.Fatalf("task create: %v", err)
	}
	if in.Title != "Buy milk" {
		t.Fatalf("expected trimmed title, got %q", in.Title)
	}
	if in.Difficulty != DefaultDifficulty || in.Favourite || in.Done {
		t.Fatalf("unexpected defaults %+v", in)
	}
	if in.Lat != nil || in.Lng != nil || in.Parent != nil || in.List != nil {
		t.Fatalf("expected unset references %+v", in)
	}
}

func TestTaskPatchInput(t *testing.T) {
	patch, err := TaskPatchInput(bag(t, `{"done":true,"list":null}`))
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patch.Done == nil || !*patch.Done {
		t.Fatalf("expected done patch")
	}
	if !patch.List.Set || patch.List.Value != nil {
		t.Fatalf("expected explicit null list, got %+v", patch.List)
	}
	if patch.Parent.Set || patch.Title != nil {
		t.Fatalf("expected untouched fields, got %+v", patch)
	}

	patch, err = TaskPatchInput(bag(t, `{"lat":null,"lng":null}`))
	if err != nil {
		t.Fatalf("clear coordinates: %v", err)
	}
	if !patch.Lat.Set || !patch.Lng.Set || patch.Lat.Value != nil {
		t.Fatalf("expected cleared coordinates, got %+v", patch)
	}

	_, err = TaskPatchInput(bag(t, `{"lat":1}`))
	wantMessage(t, err, `"lat" and "lng" must be provided together`)

	_, err = TaskPatchInput(bag(t, `{}`))
	wantMessage(t, err, `"value" must contain at least one of [title, details, deadline, parent, difficulty, lat, lng, list, favourite, done]`)
}

func TestTaskList(t *testing.T) {
	in, err := TaskList(bag(t, `{"name":" Groceries "}`))
	if err != nil || in.Name != "Groceries" {
		t.Fatalf("expected trimmed name, got %q, %v", in.Name, err)
	}
	_, err = TaskList(bag(t, `{"name":""}`))
	wantMessage(t, err, `"name" is not allowed to be empty`)
	_, err = TaskList(bag(t, `{"name":"`+strings.Repeat("n", 31)+`"}`))
	wantMessage(t, err, `"name" length must be less than or equal to 30 characters long`)
	_, err = TaskList(bag(t, `{}`))
	wantMessage(t, err, `"name" is required`)
}

func TestNotificationCreate(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"valid", `{"task":1,"scheduledTime":"2030-01-01T13:00:00Z","message":"soon","type":"urgent"}`, ""},
		{"missing task", `{"scheduledTime":"2030-01-01T13:00:00Z"}`, `"task" is required`},
		{"bad task", `{"task":-2,"scheduledTime":"2030-01-01T13:00:00Z"}`, `"task" must be a positive number`},
		{"missing time", `{"task":1}`, `"scheduledTime" is required`},
		{"past time", `{"task":1,"scheduledTime":"2030-01-01T11:59:59Z"}`, `"scheduledTime" must be greater than "now"`},
		{"now is not future", `{"task":1,"scheduledTime":"2030-01-01T12:00:00Z"}`, `"scheduledTime" must be greater than "now"`},
		{"bad time", `{"task":1,"scheduledTime":"later"}`, `"scheduledTime" must be a valid date`},
		{"long message", `{"task":1,"scheduledTime":"2030-01-02","message":"` + strings.Repeat("m", 256) + `"}`, `"message" length must be less than or equal to 255 characters long`},
		{"bad type", `{"task":1,"scheduledTime":"2030-01-02","type":"sms"}`, `"type" must be one of [reminder, deadline, recurring, urgent, custom]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NotificationCreate(bag(t, tt.body), now)
			wantMessage(t, err, tt.want)
		})
	}

	in, err := NotificationCreate(bag(t, `{"task":"4","scheduledTime":"2030-01-01T14:00:00+01:00"}`), now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if in.Type != "reminder" {
		t.Fatalf("expected default type reminder, got %q", in.Type)
	}
	if in.Task != 4 {
		t.Fatalf("expected task 4, got %d", in.Task)
	}
	if !in.ScheduledTime.Equal(time.Date(2030, 1, 1, 13, 0, 0, 0, time.UTC)) || in.ScheduledTime.Location() != time.UTC {
		t.Fatalf("expected UTC time, got %v", in.ScheduledTime)
	}
}

func TestNotificationUpdateRejectsTask(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err := NotificationUpdate(bag(t, `{"task":2,"scheduledTime":"2030-01-02"}`), now)
	wantMessage(t, err, `"task" is not allowed`)
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		raw     string
		want    *bool
		wantErr bool
	}{
		{"", ptr(true), false},
		{"true", ptr(true), false},
		{"FALSE", ptr(false), false},
		{"all", nil, false},
		{"maybe", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Enabled(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Enabled(%q) error = %v", tt.raw, err)
			}
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Fatalf("Enabled(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestID(t *testing.T) {
	if id, err := ID("id", "42"); err != nil || id != 42 {
		t.Fatalf("expected 42, got %d, %v", id, err)
	}
	_, err := ID("id", "abc")
	wantMessage(t, err, `"id" must be a number`)
	_, err = ID("id", json.Number("9999999999"))
	wantMessage(t, err, "")

	for _, raw := range []any{"1e19", "99999999999999999999", json.Number("1e30")} {
		_, err = ID("parent", raw)
		wantMessage(t, err, `"parent" must be less than or equal to 9999999999`)
	}
	_, err = ID("parent", "-1e30")
	wantMessage(t, err, `"parent" must be a positive number`)
}

func ptr[T any](v T) *T {
	return &v
}
