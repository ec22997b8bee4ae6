package room

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/roomsync/internal/repository/room"
	roomRedis "github.com/sharetube/roomsync/internal/repository/room/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	repo   iRoomRepo
	logger *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := roomRedis.NewRepo(rc, &roomRedis.Config{ExpireDuration: time.Hour, JoinTimeout: time.Second}, logger)

	return &testEnv{repo: repo, logger: logger}
}

func (e *testEnv) newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s := NewSession(e.repo, e.logger, opts...)
	t.Cleanup(s.Close)

	return s
}

// waitFor blocks until the session snapshot satisfies cond.
func waitFor(t *testing.T, s *Session, cond func(Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(s.Snapshot())
	}, 2*time.Second, 5*time.Millisecond)
}

func loaded(snap Snapshot) bool {
	return snap.State != nil
}

var (
	trackA = room.Track{ID: "a", Title: "A", VideoID: "vid-a", Duration: "3:20"}
	trackB = room.Track{ID: "b", Title: "B", VideoID: "vid-b", Duration: "3:00"}
)

func TestCreateAndJoin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	roomID, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)
	assert.True(t, host.IsHost())
	assert.Equal(t, "Alice", host.Snapshot().Self.DisplayName)

	guest := env.newSession(t)
	ok, err := guest.Join(ctx, roomID, "Bob")
	require.NoError(t, err)
	require.True(t, ok)
	waitFor(t, guest, loaded)
	assert.False(t, guest.IsHost())

	waitFor(t, host, func(snap Snapshot) bool {
		return len(snap.State.Members) == 2
	})
}

func TestJoinMissingRoom(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t)

	ok, err := s.Join(context.Background(), "NOPE42", "Bob")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, s.Snapshot().State)
}

func TestRejoinKeepsMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	roomID, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)
	hostID := host.Snapshot().Self.ID
	host.Close()

	reloaded := env.newSession(t)
	ok, err := reloaded.Rejoin(ctx, roomID, hostID)
	require.NoError(t, err)
	require.True(t, ok)
	waitFor(t, reloaded, loaded)
	assert.True(t, reloaded.IsHost())
	assert.Equal(t, "Alice", reloaded.Snapshot().Self.DisplayName)

	ok, err = env.newSession(t).Rejoin(ctx, roomID, "missing-member")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNonHostIntentsAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	roomID, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	guest := env.newSession(t)
	_, err = guest.Join(ctx, roomID, "Bob")
	require.NoError(t, err)
	waitFor(t, guest, loaded)

	require.NoError(t, guest.Play(ctx, trackA))
	require.NoError(t, guest.SetVolume(ctx, 10))
	require.NoError(t, guest.AddToPlaylist(ctx, trackB))

	// A host write afterwards proves the guest writes never landed.
	require.NoError(t, host.SetVolume(ctx, 40))
	waitFor(t, guest, func(snap Snapshot) bool {
		return snap.State.Volume == 40
	})
	state := guest.Snapshot().State
	assert.Nil(t, state.CurrentTrack)
	assert.Empty(t, state.Playlist)
}

func TestIntentsWithoutRoom(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t)
	ctx := context.Background()

	assert.NoError(t, s.Play(ctx, trackA))
	assert.NoError(t, s.Pause(ctx))
	assert.NoError(t, s.SetMovieVolume(ctx, 20))
	assert.NoError(t, s.Leave(ctx))
	assert.Nil(t, s.ActiveMode())
}

func TestTransportIntents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	_, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	require.NoError(t, host.Play(ctx, trackA))
	waitFor(t, host, func(snap Snapshot) bool {
		return snap.State.CurrentTrack != nil && snap.State.IsPlaying
	})

	require.NoError(t, host.UpdateCurrentTime(ctx, 42))
	waitFor(t, host, func(snap Snapshot) bool {
		return snap.State.CurrentTime == 42
	})

	t.Run("pause keeps the last known time", func(t *testing.T) {
		require.NoError(t, host.Pause(ctx))
		waitFor(t, host, func(snap Snapshot) bool {
			return !snap.State.IsPlaying
		})
		assert.Equal(t, 42.0, host.Snapshot().State.CurrentTime)
	})

	t.Run("seek bumps the seek sequence", func(t *testing.T) {
		before := host.Snapshot().State.SeekSeq
		require.NoError(t, host.Seek(ctx, 90))
		waitFor(t, host, func(snap Snapshot) bool {
			return snap.State.SeekSeq == before+1
		})
		assert.Equal(t, 90.0, host.Snapshot().State.CurrentTime)
	})

	t.Run("resume", func(t *testing.T) {
		require.NoError(t, host.Resume(ctx))
		waitFor(t, host, func(snap Snapshot) bool {
			return snap.State.IsPlaying
		})
	})

	t.Run("volume is clamped", func(t *testing.T) {
		require.NoError(t, host.SetVolume(ctx, 150))
		waitFor(t, host, func(snap Snapshot) bool {
			return snap.State.Volume == 100
		})
	})

	t.Run("report time follows the active mode", func(t *testing.T) {
		require.NoError(t, host.ReportTime(ctx, 120))
		waitFor(t, host, func(snap Snapshot) bool {
			return snap.State.CurrentTime == 120
		})
	})
}

func TestPlaylist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	_, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	// Empty playlist: nothing to advance to.
	require.NoError(t, host.PlayNext(ctx))

	require.NoError(t, host.AddToPlaylist(ctx, trackA))
	require.NoError(t, host.AddToPlaylist(ctx, trackB))
	require.NoError(t, host.Play(ctx, trackA))
	waitFor(t, host, func(snap Snapshot) bool {
		return len(snap.State.Playlist) == 2 && snap.State.CurrentTrack != nil
	})

	require.NoError(t, host.UpdateCurrentTime(ctx, 199))
	require.NoError(t, host.Advance(ctx))
	waitFor(t, host, func(snap Snapshot) bool {
		return snap.State.CurrentTrack.ID == trackB.ID
	})
	state := host.Snapshot().State
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 0.0, state.CurrentTime)

	// Wraps back to the first track.
	require.NoError(t, host.PlayNext(ctx))
	waitFor(t, host, func(snap Snapshot) bool {
		return snap.State.CurrentTrack.ID == trackA.ID
	})

	require.NoError(t, host.RemoveFromPlaylist(ctx, trackA.ID))
	waitFor(t, host, func(snap Snapshot) bool {
		return len(snap.State.Playlist) == 1
	})
	assert.Equal(t, trackB.ID, host.Snapshot().State.Playlist[0].ID)
}

func TestTrackStartBumpsSeekSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	_, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	require.NoError(t, host.AddToPlaylist(ctx, trackA))
	require.NoError(t, host.Play(ctx, trackA))
	waitFor(t, host, func(snap Snapshot) bool {
		return snap.State.CurrentTrack != nil && snap.State.SeekSeq == 1
	})

	require.NoError(t, host.UpdateCurrentTime(ctx, 199))
	waitFor(t, host, func(snap Snapshot) bool { return snap.State.CurrentTime == 199 })

	// A one-track playlist wraps onto the same track.
	require.NoError(t, host.Advance(ctx))
	waitFor(t, host, func(snap Snapshot) bool { return snap.State.SeekSeq == 2 })
	state := host.Snapshot().State
	assert.Equal(t, trackA.ID, state.CurrentTrack.ID)
	assert.Equal(t, 0.0, state.CurrentTime)
	assert.True(t, state.IsPlaying)
}

func TestPlaylistLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t, WithPlaylistLimit(1))
	_, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	require.NoError(t, host.AddToPlaylist(ctx, trackA))
	assert.ErrorIs(t, host.AddToPlaylist(ctx, trackB), ErrPlaylistFull)
}

func TestNextTrack(t *testing.T) {
	tests := []struct {
		name     string
		state    room.State
		expected string
		ok       bool
	}{
		{name: "empty", state: room.State{}, ok: false},
		{name: "no current", state: room.State{Playlist: []room.Track{trackA, trackB}}, expected: "a", ok: true},
		{name: "middle", state: room.State{CurrentTrack: &trackA, Playlist: []room.Track{trackA, trackB}}, expected: "b", ok: true},
		{name: "wrap", state: room.State{CurrentTrack: &trackB, Playlist: []room.Track{trackA, trackB}}, expected: "a", ok: true},
		{name: "current not listed", state: room.State{CurrentTrack: &room.Track{ID: "x"}, Playlist: []room.Track{trackA, trackB}}, expected: "a", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := nextTrack(&tt.state)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, next.ID)
		})
	}
}

func TestTransferHostRederivesRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	roomID, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	guest := env.newSession(t)
	_, err = guest.Join(ctx, roomID, "Bob")
	require.NoError(t, err)
	waitFor(t, guest, loaded)
	guestID := guest.Snapshot().Self.ID

	require.NoError(t, host.TransferHost(ctx, "not-a-member"))
	require.NoError(t, host.TransferHost(ctx, guestID))

	waitFor(t, guest, func(snap Snapshot) bool { return snap.IsHost })
	waitFor(t, host, func(snap Snapshot) bool { return !snap.IsHost })
	assert.Equal(t, "Bob", guest.Snapshot().State.HostName)

	// The former host no longer controls transport.
	require.NoError(t, host.Play(ctx, trackA))
	require.NoError(t, guest.SetVolume(ctx, 33))
	waitFor(t, host, func(snap Snapshot) bool { return snap.State.Volume == 33 })
	assert.Nil(t, host.Snapshot().State.CurrentTrack)
}

func TestHostLeavePromotesMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	roomID, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	guest := env.newSession(t)
	_, err = guest.Join(ctx, roomID, "Bob")
	require.NoError(t, err)
	waitFor(t, guest, loaded)

	require.NoError(t, host.Leave(ctx))
	assert.Nil(t, host.Snapshot().State)
	assert.Empty(t, host.Snapshot().RoomID)

	waitFor(t, guest, func(snap Snapshot) bool { return snap.IsHost })

	require.NoError(t, guest.Leave(ctx))
}

func TestSwitchingRoomsReplacesSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.newSession(t)
	roomA, err := a.Create(ctx, "Alice")
	require.NoError(t, err)
	b := env.newSession(t)
	roomB, err := b.Create(ctx, "Bob")
	require.NoError(t, err)

	s := env.newSession(t)
	_, err = s.Join(ctx, roomA, "Carol")
	require.NoError(t, err)
	waitFor(t, s, loaded)

	_, err = s.Join(ctx, roomB, "Carol")
	require.NoError(t, err)
	waitFor(t, s, func(snap Snapshot) bool {
		return snap.State != nil && snap.State.ID == roomB
	})

	// Changes to the old room never reach the new snapshot.
	waitFor(t, a, loaded)
	require.NoError(t, a.SetVolume(ctx, 5))
	waitFor(t, a, func(snap Snapshot) bool { return snap.State.Volume == 5 })
	time.Sleep(50 * time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, roomB, snap.State.ID)
	assert.Equal(t, room.DefaultVolume, snap.State.Volume)
}

func TestRoomDeletionClearsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	roomID, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)
	hostID := host.Snapshot().Self.ID

	watcher := env.newSession(t)
	ok, err := watcher.Rejoin(ctx, roomID, hostID)
	require.NoError(t, err)
	require.True(t, ok)
	waitFor(t, watcher, loaded)

	require.NoError(t, host.Leave(ctx))
	waitFor(t, watcher, func(snap Snapshot) bool { return snap.Closed })
	assert.Nil(t, watcher.Snapshot().State)
	assert.False(t, watcher.IsHost())
}

func TestMovieMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	roomID, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	require.NoError(t, host.Play(ctx, trackA))
	require.NoError(t, host.StartMovieMode(ctx))
	waitFor(t, host, func(snap Snapshot) bool { return snap.State.IsMovieMode })

	mode, ok := host.ActiveMode().(room.MovieMode)
	require.True(t, ok, "movie mode must win over a loaded track")
	assert.Nil(t, mode.Movie)

	// Play without a movie does nothing.
	require.NoError(t, host.PlayMovie(ctx))

	movie := room.Movie{ID: "m1", Title: "Film", EmbedURL: "https://example.com/embed/m1"}
	require.NoError(t, host.SelectMovie(ctx, movie))
	require.NoError(t, host.PlayMovie(ctx))
	waitFor(t, host, func(snap Snapshot) bool {
		return snap.State.CurrentMovie != nil && snap.State.MovieState.IsPlaying
	})

	require.NoError(t, host.SeekMovie(ctx, 600))
	waitFor(t, host, func(snap Snapshot) bool { return snap.State.MovieState.SeekSeq == 1 })
	assert.Equal(t, 600.0, host.Snapshot().State.MovieState.CurrentTime)

	require.NoError(t, host.ReportTime(ctx, 605))
	waitFor(t, host, func(snap Snapshot) bool { return snap.State.MovieState.CurrentTime == 605 })

	guest := env.newSession(t)
	_, err = guest.Join(ctx, roomID, "Bob")
	require.NoError(t, err)
	waitFor(t, guest, loaded)

	require.NoError(t, guest.SetMovieVolume(ctx, 25))
	require.NoError(t, guest.PauseMovie(ctx))
	waitFor(t, host, func(snap Snapshot) bool { return snap.State.MovieState.Volume == 25 })
	assert.True(t, host.Snapshot().State.MovieState.IsPlaying)

	require.NoError(t, host.Advance(ctx))
	waitFor(t, host, func(snap Snapshot) bool { return !snap.State.MovieState.IsPlaying })

	require.NoError(t, host.ExitMovieMode(ctx))
	waitFor(t, host, func(snap Snapshot) bool { return !snap.State.IsMovieMode })
	assert.Nil(t, host.Snapshot().State.CurrentMovie)
	_, ok = host.ActiveMode().(room.MusicMode)
	assert.True(t, ok)
}

func TestChangesAreSignalled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	first, releaseFirst := host.Changes()
	defer releaseFirst()
	second, releaseSecond := host.Changes()
	defer releaseSecond()
	_, err := host.Create(ctx, "Alice")
	require.NoError(t, err)

	for _, changes := range []<-chan struct{}{first, second} {
		select {
		case <-changes:
		case <-time.After(2 * time.Second):
			t.Fatal("no change signalled")
		}
	}
}

func TestChangesSignalledOnLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	_, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	changes, release := host.Changes()
	defer release()
	require.NoError(t, host.Leave(ctx))

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signalled")
	}
}

func TestReleasedChangesAreNotSignalled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newSession(t)
	_, err := host.Create(ctx, "Alice")
	require.NoError(t, err)
	waitFor(t, host, loaded)

	kept, releaseKept := host.Changes()
	defer releaseKept()
	for range 3 {
		_, release := host.Changes()
		release()
		release()
	}
	assert.Equal(t, 1, host.listenerCount())

	released, release := host.Changes()
	release()
	require.NoError(t, host.SetVolume(ctx, 40))

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signalled")
	}
	select {
	case <-released:
		t.Fatal("released channel was signalled")
	case <-time.After(100 * time.Millisecond):
	}
}
