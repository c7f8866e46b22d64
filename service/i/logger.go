package i

// Logger is the leveled logger every component receives.
type Logger interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}
