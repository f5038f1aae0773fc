package mh

import (
	"github.com/infodancer/msgfolder"
)

func init() {
	msgfolder.Register("mh", func(config msgfolder.Config) (msgfolder.Backend, error) {
		return NewStore(config.Path, Options{
			Create:        config.Create && config.Mode != msgfolder.ReadOnly,
			Renumber:      config.BoolOption("renumber", true),
			SequencesFile: config.Option("sequences_file", DefaultSequencesFile),
			Logger:        config.Logger,
		})
	})
}
