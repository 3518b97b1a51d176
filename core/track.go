package core

import (
	"fmt"
	"time"
)

// Track is a maximal contiguous run of epochs with unbroken signal lock
// between one receiver and one transmitter. Epoch bounds are inclusive
// indices into the receiver's grid.
type Track struct {
	IdTrans    int
	PRN        string
	StartEpoch int
	EndEpoch   int
	Types      []SignalType
}

// Len returns the number of epochs spanned by the track.
func (t *Track) Len() int { return t.EndEpoch - t.StartEpoch + 1 }

// Contains reports whether the epoch lies within the track.
func (t *Track) Contains(idEpoch int) bool {
	return idEpoch >= t.StartEpoch && idEpoch <= t.EndEpoch
}

// TimeBounds returns the wall-clock start and end of the track.
func (t *Track) TimeBounds(r *Receiver) (time.Time, time.Time) {
	return r.Grid.Time(t.StartEpoch), r.Grid.Time(t.EndEpoch)
}

func (t *Track) String() string {
	return fmt.Sprintf("%s[%d:%d]", t.PRN, t.StartEpoch, t.EndEpoch)
}

// CreateTracks segments the receiver's observations into tracks: one scan
// over the epoch grid per transmitter, starting a track at the first usable,
// signal-type-complete epoch after a gap and closing it at the next gap or
// end of data. Tracks with fewer usable epochs than minObsCount are
// discarded on the spot. Observation usability is not touched here.
func (r *Receiver) CreateTracks(transmitters []*Transmitter, minObsCount int, requiredTypes []SignalType) {
	r.Tracks = r.Tracks[:0]

	for idTrans, trans := range transmitters {
		if !trans.Usable() {
			continue
		}

		start := -1
		count := 0
		flush := func(end int) {
			if start >= 0 && count >= minObsCount {
				r.Tracks = append(r.Tracks, &Track{
					IdTrans:    idTrans,
					PRN:        trans.PRN,
					StartEpoch: start,
					EndEpoch:   end,
					Types:      requiredTypes,
				})
			}
			start = -1
			count = 0
		}

		for idEpoch := 0; idEpoch < r.Grid.Count; idEpoch++ {
			o := r.Observation(idEpoch, idTrans)
			if o == nil || !o.HasAll(requiredTypes) {
				flush(idEpoch - 1)
				continue
			}
			if start < 0 {
				start = idEpoch
			}
			count++
		}
		flush(r.Grid.Count - 1)
	}
}

// TracksOf returns the receiver's tracks for one transmitter, in epoch order.
func (r *Receiver) TracksOf(idTrans int) []*Track {
	var out []*Track
	for _, t := range r.Tracks {
		if t.IdTrans == idTrans {
			out = append(out, t)
		}
	}
	return out
}

// removeTrack deletes a track from the receiver and disables its
// observations, so the epochs it covered contribute nothing downstream.
func (r *Receiver) removeTrack(track *Track) {
	for idEpoch := track.StartEpoch; idEpoch <= track.EndEpoch; idEpoch++ {
		if idEpoch < 0 || idEpoch >= len(r.obs) {
			continue
		}
		if track.IdTrans < len(r.obs[idEpoch]) {
			r.obs[idEpoch][track.IdTrans].Disable()
		}
	}
	for i, t := range r.Tracks {
		if t == track {
			r.Tracks = append(r.Tracks[:i], r.Tracks[i+1:]...)
			return
		}
	}
}

// replaceTrack swaps one track for a set of sub-tracks, keeping list order.
func (r *Receiver) replaceTrack(track *Track, subs ...*Track) {
	for i, t := range r.Tracks {
		if t != track {
			continue
		}
		rest := append([]*Track{}, r.Tracks[i+1:]...)
		r.Tracks = append(r.Tracks[:i], subs...)
		r.Tracks = append(r.Tracks, rest...)
		return
	}
}
