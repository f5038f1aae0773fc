package mbox

import (
	"github.com/infodancer/msgfolder"
)

func init() {
	msgfolder.Register("mbox", func(config msgfolder.Config) (msgfolder.Backend, error) {
		// sender is the envelope sender written on separator lines of new
		// messages that carry no usable From or Return-Path field.
		sender := config.Option("sender", DefaultSender)
		return NewStore(config.Path, config.Mode, config.Create, sender, config.Logger)
	})
}
