// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"errors"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func TestUidPlusDeleter_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	flagger := NewMockdeletedFlagger(ctrl)
	expunger := NewMockuidExpunger(ctrl)
	deleter := uidPlusDeleter{flagger, expunger}

	seqset := &imap.SeqSet{}
	seqset.AddNum(u32a(1, 2, 3)...)
	flagger.EXPECT().
		flagDeleted(gomock.Eq(u32a(1, 2, 3))).
		Return(seqset, nil)

	expunger.EXPECT().
		UidExpunge(gomock.Eq(seqset), gomock.Any()).
		DoAndReturn(func(seqSet *imap.SeqSet, ch chan uint32) error {
			ch <- u32(1)
			ch <- u32(2)
			ch <- u32(3)
			close(ch)
			return nil
		})

	err := deleter.delete(u32a(1, 2, 3))
	assert.NoError(t, err)
}

func TestUidPlusDeleter_DeleteWrongExpungeCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	flagger := NewMockdeletedFlagger(ctrl)
	expunger := NewMockuidExpunger(ctrl)
	deleter := uidPlusDeleter{flagger, expunger}

	seqset := &imap.SeqSet{}
	seqset.AddNum(u32a(1, 2, 3)...)
	flagger.EXPECT().
		flagDeleted(gomock.Eq(u32a(1, 2, 3))).
		Return(seqset, nil)

	expunger.EXPECT().
		UidExpunge(gomock.Eq(seqset), gomock.Any()).
		DoAndReturn(func(seqSet *imap.SeqSet, ch chan uint32) error {
			ch <- u32(1)
			close(ch)
			return nil
		})

	err := deleter.delete(u32a(1, 2, 3))
	assert.EqualError(t, err, "unexpected number of expunges, expected 3 got 1")
}

func TestCompatibilityDeleter_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := NewMockexpungerSearcher(ctrl)
	flagger := NewMockdeletedFlagger(ctrl)
	deleter := compatibilityDeleter{conn, flagger}

	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}

	conn.EXPECT().
		UidSearch(gomock.Eq(criteria)).
		Return(u32a(), nil)

	seqset := &imap.SeqSet{}
	seqset.AddNum(u32a(1, 2, 3)...)
	flagger.EXPECT().
		flagDeleted(gomock.Eq(u32a(1, 2, 3))).
		Return(seqset, nil)

	conn.EXPECT().
		Expunge(gomock.Any()).
		DoAndReturn(func(ch chan uint32) error {
			ch <- u32(1)
			ch <- u32(2)
			ch <- u32(3)
			close(ch)
			return nil
		})

	err := deleter.delete(u32a(1, 2, 3))
	assert.NoError(t, err)
}

func TestCompatibilityDeleter_DeleteButNotReady(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := NewMockexpungerSearcher(ctrl)
	flagger := NewMockdeletedFlagger(ctrl)
	deleter := compatibilityDeleter{conn, flagger}

	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}

	conn.EXPECT().
		UidSearch(gomock.Eq(criteria)).
		Return(u32a(1), nil)

	err := deleter.delete(u32a(1, 2, 3))
	assert.EqualError(t, err, "folder is not ready for delete: folder has previous items with delete flag set")
	assert.True(t, errors.Is(err, ItemsWithDeletedFlagPresent))
}

func TestMoveMover_Move(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := NewMockuidMoveClient(ctrl)
	mover := moveMover{conn}

	seqset := &imap.SeqSet{}
	seqset.AddNum(u32a(1, 2, 3)...)
	conn.EXPECT().
		UidMove(gomock.Eq(seqset), gomock.Eq("dest")).
		Return(nil)

	err := mover.move(u32a(1, 2, 3), "dest")
	assert.NoError(t, err)
}

func TestCompatibilityMover_Move(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := NewMockuidCopyClient(ctrl)
	deleter := NewMockdeleter(ctrl)

	mover := compatibilityMover{conn, deleter}

	seqset := &imap.SeqSet{}
	seqset.AddNum(u32a(1, 2, 3)...)
	conn.EXPECT().
		UidCopy(gomock.Eq(seqset), "dest").
		Return(nil)

	deleter.EXPECT().
		delete(u32a(1, 2, 3)).
		Return(nil)

	err := mover.move(u32a(1, 2, 3), "dest")
	assert.NoError(t, err)
}

func TestCompatibilityMover_MoveCopyFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := NewMockuidCopyClient(ctrl)
	deleter := NewMockdeleter(ctrl)

	mover := compatibilityMover{conn, deleter}

	conn.EXPECT().
		UidCopy(gomock.Any(), "dest").
		Return(errors.New("no such folder"))

	err := mover.move(u32a(1, 2, 3), "dest")
	assert.EqualError(t, err, "could not copy mails: no such folder")
}
