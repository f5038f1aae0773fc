package maildir

import (
	"github.com/infodancer/msgfolder"
)

func init() {
	msgfolder.Register("maildir", func(config msgfolder.Config) (msgfolder.Backend, error) {
		return NewStore(config.Path, Options{
			Create:    config.Create && config.Mode != msgfolder.ReadOnly,
			AcceptNew: config.BoolOption("accept_new", true),
			Logger:    config.Logger,
		})
	})
}
