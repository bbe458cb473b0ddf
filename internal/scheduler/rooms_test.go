package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagged(nrp, moderator string) taggedStudent {
	return taggedStudent{
		Candidate: Candidate{NRP: nrp, Name: "Student " + nrp},
		Moderator: moderator,
	}
}

func roomNRPs(room []taggedStudent) []string {
	out := make([]string, 0, len(room))
	for _, s := range room {
		out = append(out, s.NRP)
	}
	return out
}

func TestPackRoomsKeepsFullGroups(t *testing.T) {
	students := []taggedStudent{
		tagged("s1", "A"), tagged("s2", "A"),
		tagged("s3", "B"), tagged("s4", "B"),
	}

	rooms := packRooms(students, 2)

	require.Len(t, rooms, 2)
	assert.Equal(t, []string{"s1", "s2"}, roomNRPs(rooms[0]))
	assert.Equal(t, []string{"s3", "s4"}, roomNRPs(rooms[1]))
}

func TestPackRoomsMergesUndersizedRemainders(t *testing.T) {
	students := []taggedStudent{
		tagged("s1", "A"), tagged("s2", "A"), tagged("s3", "A"),
		tagged("s4", "B"),
	}

	rooms := packRooms(students, 2)

	// A's full pair stays together; the leftover from A and B's lone
	// student merge into one mixed room after the full ones.
	require.Len(t, rooms, 2)
	assert.Equal(t, []string{"s1", "s2"}, roomNRPs(rooms[0]))
	assert.Equal(t, []string{"s3", "s4"}, roomNRPs(rooms[1]))
}

func TestPackRoomsLastRoomMayRunShort(t *testing.T) {
	students := []taggedStudent{
		tagged("s1", "A"), tagged("s2", "B"), tagged("s3", "C"),
	}

	rooms := packRooms(students, 2)

	require.Len(t, rooms, 2)
	assert.Equal(t, []string{"s1", "s2"}, roomNRPs(rooms[0]))
	assert.Equal(t, []string{"s3"}, roomNRPs(rooms[1]))
}

func TestPackRoomsPreservesRosterOrderWithinGroups(t *testing.T) {
	students := []taggedStudent{
		tagged("s1", "A"), tagged("s2", "B"), tagged("s3", "A"), tagged("s4", "B"),
	}

	rooms := packRooms(students, 2)

	require.Len(t, rooms, 2)
	assert.Equal(t, []string{"s1", "s3"}, roomNRPs(rooms[0]))
	assert.Equal(t, []string{"s2", "s4"}, roomNRPs(rooms[1]))
}
