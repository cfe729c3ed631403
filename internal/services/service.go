package services

// Service is the lifecycle contract shared by every long-running component.
type Service interface {
	Start() error
	Stop() error
}
