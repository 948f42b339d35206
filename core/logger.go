package core

// Logger logs messages and reports errors.
// args may carry an error, a map[string]interface{} of extra data, or a Person to attach.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the caller an error happened for.
type Person struct {
	ID    string
	Email string
}
