// Package swapdb is the on-disk store for coinswapd: the cached offer book,
// the bond ban list, watched-contract state, and in-flight swap session
// state. It is a thin wrapper around a single bbolt file with a versioned
// migration framework so the on-disk schema can evolve across releases.
package swapdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/coinswapd/coinswapd/swapwire"
)

const (
	dbName           = "coinswap.db"
	dbFilePermission = 0600
)

var byteOrder = binary.BigEndian

var (
	metaBucket       = []byte("meta")
	offerBucket      = []byte("offers")
	banBucket        = []byte("banned-bonds")
	watchBucket      = []byte("watched-contracts")
	sessionBucket    = []byte("swap-sessions")
	walletKeyBucket  = []byte("wallet-keys")
	walletUtxoBucket = []byte("wallet-utxos")
	bondBucket       = []byte("own-fidelity-bond")

	dbVersionKey = []byte("db-version")
)

// migration mutates the bucket layout of an existing database in place to
// bring it up to a later schema version.
type migration func(tx *bbolt.Tx) error

type version struct {
	number    uint32
	migration migration
}

// dbVersions enumerates every schema version in order. The base version
// requires no migration; later entries run their migration function when
// upgrading a database created at an earlier version.
var dbVersions = []version{
	{number: 0, migration: nil},
}

// DB is the primary datastore for coinswapd. It stores the locally cached
// offer book, the fidelity-bond ban list, contract watcher checkpoints, and
// in-flight session state.
type DB struct {
	*bbolt.DB
	dbPath string
}

// Open opens (creating if necessary) the coinswap database rooted at
// dbPath, applying any schema migrations needed to bring it current.
func Open(dbPath string) (*DB, error) {
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(dbPath, dbName)
	bdb, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	swapDB := &DB{
		DB:     bdb,
		dbPath: dbPath,
	}

	if err := swapDB.createBuckets(); err != nil {
		bdb.Close()
		return nil, err
	}

	if err := swapDB.syncVersions(dbVersions); err != nil {
		bdb.Close()
		return nil, err
	}

	return swapDB, nil
}

func (d *DB) createBuckets() error {
	return d.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{
			metaBucket, offerBucket, banBucket, watchBucket, sessionBucket,
			walletKeyBucket, walletUtxoBucket, bondBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// fileExists returns true if path exists, false otherwise.
func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

func (d *DB) syncVersions(versions []version) error {
	current, err := d.dbVersion()
	if err != nil {
		return err
	}

	latest := getLatestDBVersion(versions)
	log.Debugf("checking for schema update: latest_version=%v db_version=%v",
		latest, current)
	if current == latest {
		return nil
	}

	log.Infof("performing database schema migration from version %v to %v",
		current, latest)

	migrations, migrationVersions := getMigrationsToApply(versions, current)
	return d.Update(func(tx *bbolt.Tx) error {
		for i, m := range migrations {
			if m == nil {
				continue
			}
			log.Infof("applying migration #%v", migrationVersions[i])
			if err := m(tx); err != nil {
				return fmt.Errorf("migration #%v failed: %w",
					migrationVersions[i], err)
			}
		}
		return d.putDBVersion(tx, latest)
	})
}

func (d *DB) dbVersion() (uint32, error) {
	var version uint32
	err := d.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return ErrMetaNotFound
		}
		raw := meta.Get(dbVersionKey)
		if raw == nil {
			version = 0
			return nil
		}
		version = byteOrder.Uint32(raw)
		return nil
	})
	if err == ErrMetaNotFound {
		return 0, nil
	}
	return version, err
}

func (d *DB) putDBVersion(tx *bbolt.Tx, v uint32) error {
	meta := tx.Bucket(metaBucket)
	if meta == nil {
		return ErrMetaNotFound
	}
	var raw [4]byte
	byteOrder.PutUint32(raw[:], v)
	return meta.Put(dbVersionKey, raw[:])
}

func getLatestDBVersion(versions []version) uint32 {
	return versions[len(versions)-1].number
}

func getMigrationsToApply(versions []version, current uint32) ([]migration, []uint32) {
	migrations := make([]migration, 0, len(versions))
	migrationVersions := make([]uint32, 0, len(versions))

	for _, v := range versions {
		if v.number > current {
			migrations = append(migrations, v.migration)
			migrationVersions = append(migrationVersions, v.number)
		}
	}
	return migrations, migrationVersions
}

// PutOffer caches a Maker's advertised offer and backing bond under its
// onion address, overwriting any previous entry for that address.
func (d *DB) PutOffer(onionAddr string, offer swapwire.Offer, bond swapwire.Bond) error {
	return d.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(offerBucket)

		var buf bytes.Buffer
		if err := offer.Encode(&buf); err != nil {
			return err
		}
		if err := bond.Encode(&buf); err != nil {
			return err
		}
		return bucket.Put([]byte(onionAddr), buf.Bytes())
	})
}

// FetchOffer returns the cached offer and bond for onionAddr, or
// ErrOfferNotFound if nothing is cached for that address.
func (d *DB) FetchOffer(onionAddr string) (swapwire.Offer, swapwire.Bond, error) {
	var offer swapwire.Offer
	var bond swapwire.Bond

	err := d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(offerBucket)
		raw := bucket.Get([]byte(onionAddr))
		if raw == nil {
			return ErrOfferNotFound
		}

		r := bytes.NewReader(raw)
		if err := offer.Decode(r); err != nil {
			return err
		}
		return bond.Decode(r)
	})
	return offer, bond, err
}

// DeleteOffer evicts the cached offer for onionAddr, if any.
func (d *DB) DeleteOffer(onionAddr string) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(offerBucket).Delete([]byte(onionAddr))
	})
}

// ForEachOffer calls cb once for every cached offer, in bucket key order.
// Iteration stops and the error is propagated if cb returns a non-nil error.
func (d *DB) ForEachOffer(cb func(onionAddr string, offer swapwire.Offer, bond swapwire.Bond) error) error {
	return d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(offerBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var offer swapwire.Offer
			var bond swapwire.Bond
			r := bytes.NewReader(v)
			if err := offer.Decode(r); err != nil {
				return err
			}
			if err := bond.Decode(r); err != nil {
				return err
			}
			return cb(string(k), offer, bond)
		})
	})
}

// BanBond marks the fidelity bond at outpoint as banned, excluding any
// offer backed by it from future maker selection until untilHeight.
func (d *DB) BanBond(outpointStr string, untilHeight uint32) error {
	return d.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(banBucket)
		var raw [4]byte
		byteOrder.PutUint32(raw[:], untilHeight)
		return bucket.Put([]byte(outpointStr), raw[:])
	})
}

// IsBondBanned reports whether the bond at outpoint is currently banned,
// and the height the ban lifts at.
func (d *DB) IsBondBanned(outpointStr string) (bool, uint32, error) {
	var banned bool
	var until uint32
	err := d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(banBucket)
		raw := bucket.Get([]byte(outpointStr))
		if raw == nil {
			return nil
		}
		banned = true
		until = byteOrder.Uint32(raw)
		return nil
	})
	return banned, until, err
}

// PutWatch stores the serialized checkpoint of a watched contract under
// key, overwriting any prior checkpoint. The caller owns the encoding;
// swapdb only persists the bytes.
func (d *DB) PutWatch(key, value []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(watchBucket).Put(key, value)
	})
}

// FetchWatch returns the checkpoint stored under key, or ErrWatchNotFound.
func (d *DB) FetchWatch(key []byte) ([]byte, error) {
	var value []byte
	err := d.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(watchBucket).Get(key)
		if raw == nil {
			return ErrWatchNotFound
		}
		value = append([]byte(nil), raw...)
		return nil
	})
	return value, err
}

// DeleteWatch removes the checkpoint stored under key, if any. Called once
// a watched contract has fully resolved.
func (d *DB) DeleteWatch(key []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(watchBucket).Delete(key)
	})
}

// ForEachWatch calls cb once per stored watch checkpoint, in key order.
// Used at startup to rehydrate in-flight watchers after a restart.
func (d *DB) ForEachWatch(cb func(key, value []byte) error) error {
	return d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(watchBucket).ForEach(cb)
	})
}

// PutSession stores the serialized checkpoint of an in-flight swap session
// under key, overwriting any prior checkpoint. The caller owns the
// encoding; swapdb only persists the bytes.
func (d *DB) PutSession(key, value []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put(key, value)
	})
}

// FetchSession returns the checkpoint stored under key, or
// ErrSessionNotFound.
func (d *DB) FetchSession(key []byte) ([]byte, error) {
	var value []byte
	err := d.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(sessionBucket).Get(key)
		if raw == nil {
			return ErrSessionNotFound
		}
		value = append([]byte(nil), raw...)
		return nil
	})
	return value, err
}

// DeleteSession removes the checkpoint stored under key, if any. Called
// once a swap session has terminally completed or failed.
func (d *DB) DeleteSession(key []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete(key)
	})
}

// ForEachSession calls cb once per stored session checkpoint, in key
// order. Used at startup to rehydrate in-flight sessions after a restart.
func (d *DB) ForEachSession(cb func(key, value []byte) error) error {
	return d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).ForEach(cb)
	})
}

// PutWalletKey stores privKeyBytes under pubKeyBytes, backing the reference
// Wallet implementation's key/value keychain. Real wallet key management is
// out of this repository's scope; this exists only so coinswapd has a
// concrete collaborator to run against.
func (d *DB) PutWalletKey(pubKeyBytes, privKeyBytes []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(walletKeyBucket).Put(pubKeyBytes, privKeyBytes)
	})
}

// FetchWalletKey returns the private key bytes stored under pubKeyBytes, or
// nil if none is stored.
func (d *DB) FetchWalletKey(pubKeyBytes []byte) ([]byte, error) {
	var priv []byte
	err := d.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(walletKeyBucket).Get(pubKeyBytes)
		priv = append([]byte(nil), raw...)
		return nil
	})
	return priv, err
}

// PutWalletUtxo records value under outpointKey, keyed by the spendable
// output's serialized outpoint, backing the reference Wallet's coin
// selection.
func (d *DB) PutWalletUtxo(outpointKey, value []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(walletUtxoBucket).Put(outpointKey, value)
	})
}

// DeleteWalletUtxo removes outpointKey once its output has been spent.
func (d *DB) DeleteWalletUtxo(outpointKey []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(walletUtxoBucket).Delete(outpointKey)
	})
}

// ForEachWalletUtxo calls cb once per tracked spendable output.
func (d *DB) ForEachWalletUtxo(cb func(outpointKey, value []byte) error) error {
	return d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(walletUtxoBucket).ForEach(cb)
	})
}

var ownBondKey = []byte("own-bond")

// PutOwnBond stores this node's own advertised fidelity-bond record
// (encoded by the caller), overwriting any prior record. There is at most
// one own-bond record per node.
func (d *DB) PutOwnBond(value []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bondBucket).Put(ownBondKey, value)
	})
}

// FetchOwnBond returns the stored own-bond record, or ErrOwnBondNotFound if
// this node has not yet created one.
func (d *DB) FetchOwnBond() ([]byte, error) {
	var value []byte
	err := d.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bondBucket).Get(ownBondKey)
		if raw == nil {
			return ErrOwnBondNotFound
		}
		value = append([]byte(nil), raw...)
		return nil
	})
	return value, err
}

// DeleteOwnBond removes the stored own-bond record, called once a matured
// bond has been redeemed back into the regular wallet pool.
func (d *DB) DeleteOwnBond() error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bondBucket).Delete(ownBondKey)
	})
}
