package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionAdd(t *testing.T) {
	require := require.New(t)

	tx := NewTransaction()
	require.EqualValues(0, tx.NumValid(), "NumValid, empty transaction")

	for i := 0; i < MaxTransactionObjects; i++ {
		err := tx.Add(ObjectAccess{Valid: true, Object: uint64(i)})
		require.NoError(err, "Add")
	}
	require.EqualValues(MaxTransactionObjects, tx.NumValid(), "NumValid, full transaction")

	err := tx.Add(ObjectAccess{Valid: true, Object: 99})
	require.Error(err, "Add error on full transaction")

	objs := tx.Objects()
	for i, obj := range objs {
		require.True(obj.Valid, "slot valid")
		require.EqualValues(i, obj.Object, "slot object")
	}
}

func TestTransactionSetSlot(t *testing.T) {
	require := require.New(t)

	tx := NewTransaction()

	err := tx.SetSlot(3, ObjectAccess{Valid: true, Write: true, Object: 42})
	require.NoError(err, "SetSlot")
	require.EqualValues(1, tx.NumValid(), "NumValid after SetSlot")

	// Slots never explicitly populated default to invalid.
	objs := tx.Objects()
	for i, obj := range objs {
		if i == 3 {
			require.True(obj.Valid, "populated slot valid")
			require.True(obj.Write, "populated slot write")
			require.EqualValues(42, obj.Object, "populated slot object")
			continue
		}
		require.False(obj.Valid, "unpopulated slot invalid")
	}

	// Overwriting a populated slot must not inflate the valid count.
	err = tx.SetSlot(3, ObjectAccess{Valid: true, Object: 7})
	require.NoError(err, "SetSlot overwrite")
	require.EqualValues(1, tx.NumValid(), "NumValid after overwrite")

	// Marking a populated slot invalid again.
	err = tx.SetSlot(3, ObjectAccess{})
	require.NoError(err, "SetSlot invalidate")
	require.EqualValues(0, tx.NumValid(), "NumValid after invalidate")

	err = tx.SetSlot(MaxTransactionObjects, ObjectAccess{Valid: true})
	require.Error(err, "SetSlot out of range")
	err = tx.SetSlot(-1, ObjectAccess{Valid: true})
	require.Error(err, "SetSlot negative index")
}
