package registry

import (
	"context"
	"fmt"

	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

// Handler executes one job type end to end for one run descriptor.
type Handler interface {
	JobType() enums.JobType
	Run(ctx context.Context, desc RunDescriptor) (*RunStats, error)
}

// Registry routes job types to their handlers.
type Registry struct {
	handlers map[enums.JobType]Handler
}

// NewRegistry builds a registry preloaded with the provided handlers.
func NewRegistry(handlers ...Handler) *Registry {
	registry := &Registry{handlers: map[enums.JobType]Handler{}}
	for _, handler := range handlers {
		registry.Register(handler)
	}
	return registry
}

// Register adds a handler, replacing any previous handler for its job type.
func (r *Registry) Register(handler Handler) {
	if handler == nil {
		return
	}
	r.handlers[handler.JobType()] = handler
}

// Resolve returns the handler for a job type.
func (r *Registry) Resolve(jobType enums.JobType) (Handler, error) {
	handler, ok := r.handlers[jobType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no handler registered for job type %q", jobType))
	}
	return handler, nil
}

// JobTypes lists the registered job types.
func (r *Registry) JobTypes() []enums.JobType {
	jobTypes := make([]enums.JobType, 0, len(r.handlers))
	for jobType := range r.handlers {
		jobTypes = append(jobTypes, jobType)
	}
	return jobTypes
}
