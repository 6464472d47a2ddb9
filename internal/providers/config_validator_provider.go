package providers

import (
	"deckpack/internal/structures"
	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (c *CnfValidator) Validate() error {
	v := validate.Struct(c.conf)
	if !v.Validate() {
		return v.Errors
	}
	if c.conf.Codec.MaxMediaBytes > c.conf.Codec.MaxArchiveBytes {
		return validate.Errors{"Codec.MaxMediaBytes": {"max": "maxMediaBytes must not exceed maxArchiveBytes"}}
	}
	return nil
}
