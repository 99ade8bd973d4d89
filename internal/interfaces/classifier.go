package interfaces

import "go-offline-proxy/internal/models"

//go:generate mockgen -package=mock -source=classifier.go -destination=mock/classifier.go

// RequestClassifier decides how a request is arbitrated
type RequestClassifier interface {
	// Classify returns the class of the request from a static URL predicate
	Classify(req *models.RequestDescriptor) models.RequestClass
	// StrategyFor maps a class to the arbitration strategy used for it
	StrategyFor(class models.RequestClass) models.Strategy
}
