package domain

import "errors"

var ErrRoomIDEmpty = errors.New("room id empty")

type RoomID string

func (id RoomID) Validate() error {
	if len(id) == 0 {
		return ErrRoomIDEmpty
	}
	return nil
}
