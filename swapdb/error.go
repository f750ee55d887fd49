package swapdb

import "fmt"

var (
	ErrNoDBExists        = fmt.Errorf("swapdb: database has not yet been created")
	ErrMetaNotFound      = fmt.Errorf("swapdb: unable to locate meta information")
	ErrOfferNotFound     = fmt.Errorf("swapdb: no offer for that onion address")
	ErrBondAlreadyBanned = fmt.Errorf("swapdb: bond outpoint is already banned")
	ErrSessionNotFound   = fmt.Errorf("swapdb: no session with that id")
	ErrWatchNotFound     = fmt.Errorf("swapdb: no watched contract under that key")
	ErrOwnBondNotFound   = fmt.Errorf("swapdb: node has not created a fidelity bond yet")
)
