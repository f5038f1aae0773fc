// Package mh provides the MH directory folder backend.
//
// An MH folder is a directory holding one message per file, named by
// positive decimal integers. Other entries are ignored: hidden files, lock
// markers and anything whose name is not a number. Per-message flags live
// in the .mh_sequences file of the folder:
//
//	unseen: 3-5 8
//	flagged: 2
//	replied: 1-2
//
// Sequences with other names are kept and renumbered along with the
// messages.
//
// The package registers itself with the msgfolder registry under the name
// "mh". Options:
//
//	renumber        close numbering gaps on write (default true)
//	sequences_file  name of the sequences file (default .mh_sequences)
package mh
