package kvengine

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
)

// Key layout of a table:
//
//	't' tableID 'r' rowid             -> encoded row
//	't' tableID 'i' index indexKey rowid -> empty
//	't' tableID 'a'                   -> next auto increment value
const (
	tablePrefix   = 't'
	rowPrefix     = 'r'
	indexPrefix   = 'i'
	autoIncPrefix = 'a'

	rowIDLength = 8
)

func tableKey(tableID uint32) []byte {
	k := make([]byte, 0, 5)
	k = append(k, tablePrefix)
	return binary.BigEndian.AppendUint32(k, tableID)
}

func rowsPrefix(tableID uint32) []byte {
	return append(tableKey(tableID), rowPrefix)
}

func rowKey(tableID uint32, rowid uint64) []byte {
	return encoding.EncodeUint64(rowsPrefix(tableID), rowid)
}

func indexEntriesPrefix(tableID uint32, index int) []byte {
	return append(tableKey(tableID), indexPrefix, byte(index))
}

func autoIncKey(tableID uint32) []byte {
	return append(tableKey(tableID), autoIncPrefix)
}

// rowid of an index entry or of a row key.
func rowIDFromKey(k []byte) (uint64, error) {
	if len(k) < rowIDLength {
		return 0, errors.Wrapf(encoding.ErrInvalidEncoding, "key %x too short", k)
	}

	return encoding.DecodeUint64(k[len(k)-rowIDLength:])
}

func encodeRowID(rowid uint64) []byte {
	return encoding.EncodeUint64(nil, rowid)
}
