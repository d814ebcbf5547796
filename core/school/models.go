// Package school manages the reference data (classes and subjects) that schedules and students point to.
package school

import (
	"github.com/go-playground/validator/v10"

	"github.com/sekolah-app/sekolah/core"
)

type Class struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Subject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewItem is the payload for creating a class or a subject.
type NewItem struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	return validate.Struct(ni)
}
