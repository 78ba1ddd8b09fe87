// Package session ties an acquisition to its snapshots.
//
// A Session owns the channel list and the logic, DSO and analog snapshots of
// one capture. The device feed calls FeedLogic, FeedDso or FeedAnalog for each
// packet from a single goroutine; renderers and decoders read the snapshots
// concurrently through Logic, Dso, Analog and Group.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/snapshot"
)

// State is the lifecycle state of a Session.
type State uint8

const (
	StateIdle    State = iota // StateIdle has no capture data.
	StateRunning              // StateRunning accepts packets.
	StateStopped              // StateStopped keeps the data of a finished or aborted capture.
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// LogicPacket is one block of bit-packed logic samples from the device.
type LogicPacket struct {
	Data      []byte
	UnitSize  int
	DataError bool
}

// DsoPacket is one block of interleaved 8-bit oscilloscope samples.
type DsoPacket struct {
	Data     []byte
	Samples  uint64
	Channels int
}

// AnalogPacket is one block of interleaved analog samples.
type AnalogPacket struct {
	Data     []byte
	Samples  uint64
	Channels int
}

type group struct {
	indexList []int
	snap      *snapshot.GroupSnapshot
}

// Session is an acquisition context.
type Session struct {
	mu       sync.Mutex
	cfg      *config
	logger   *zap.Logger
	channels []Channel
	state    State

	logic  *snapshot.LogicSnapshot
	dso    *snapshot.DsoSnapshot
	analog *snapshot.AnalogSnapshot
	groups map[string]*group

	dataErrors uint64
}

// New creates an idle session for channels.
func New(channels []Channel, opts ...Option) (*Session, error) {
	if err := validateChannels(channels); err != nil {
		return nil, err
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg:      cfg,
		logger:   cfg.logger,
		channels: slices.Clone(channels),
		groups:   make(map[string]*group),
	}, nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Channels returns a copy of the channel list.
func (s *Session) Channels() []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.channels)
}

// SetChannelEnabled enables or disables the channel with index. The change
// takes effect at the next Start.
func (s *Session) SetChannelEnabled(index int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return errs.ErrAlreadyRunning
	}
	for i := range s.channels {
		if s.channels[i].Index == index {
			s.channels[i].Enabled = on
			return nil
		}
	}

	return fmt.Errorf("%w: %d", errs.ErrInvalidChannel, index)
}

// LogicUnitSize returns the bytes per logic sample the enabled channels
// need, or 0 without enabled logic channels.
func (s *Session) LogicUnitSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return logicUnitSize(s.channels)
}

// Slot returns the interleave position of a DSO or analog channel among the
// enabled channels of its kind.
func (s *Session) Slot(index int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.channels {
		if ch.Index != index || !ch.Enabled || ch.Kind == format.KindLogic {
			continue
		}

		return slices.Index(enabled(s.channels, ch.Kind), index), true
	}

	return 0, false
}

// Start begins a new capture. totalHint is the expected number of samples;
// it pre-sizes the buffers but does not limit them.
//
// Snapshots of a previous capture are reset and reused when their layout is
// unchanged. Groups survive a restart as long as their channels still fit
// the logic unit size.
func (s *Session) Start(totalHint uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return errs.ErrAlreadyRunning
	}

	unitSize := logicUnitSize(s.channels)
	dsoCount := len(enabled(s.channels, format.KindDso))
	analogCount := len(enabled(s.channels, format.KindAnalog))
	if unitSize == 0 && dsoCount == 0 && analogCount == 0 {
		return errs.ErrNoChannels
	}

	if err := s.prepareLogic(unitSize, totalHint); err != nil {
		return err
	}
	if err := s.prepareDso(dsoCount, totalHint); err != nil {
		return err
	}
	if err := s.prepareAnalog(analogCount, totalHint); err != nil {
		return err
	}

	s.dataErrors = 0
	s.state = StateRunning
	s.logger.Info("capture started",
		zap.Uint64("total_hint", totalHint),
		zap.Int("logic_unit_size", unitSize),
		zap.Int("dso_channels", dsoCount),
		zap.Int("analog_channels", analogCount),
	)

	return nil
}

func (s *Session) snapshotOptions() []snapshot.Option {
	return []snapshot.Option{
		snapshot.WithMemoryLimit(s.cfg.memoryLimit),
		snapshot.WithEnvelope(s.cfg.envelope),
	}
}

func (s *Session) prepareLogic(unitSize int, hint uint64) error {
	if unitSize == 0 {
		s.logic = nil
		s.dropGroups("no logic channels")

		return nil
	}

	if s.logic != nil && s.logic.UnitSize() == unitSize {
		s.logic.Reset()
	} else {
		logic, err := snapshot.NewLogicSnapshot(unitSize, s.snapshotOptions()...)
		if err != nil {
			return err
		}
		s.logic = logic
		s.rebindGroups()
	}

	return s.logic.Init(hint)
}

// rebindGroups recreates every group over a new logic snapshot.
func (s *Session) rebindGroups() {
	for name, g := range s.groups {
		snap, err := snapshot.NewGroupSnapshot(s.logic, g.indexList)
		if err != nil {
			s.logger.Warn("group dropped", zap.String("group", name), zap.Error(err))
			delete(s.groups, name)

			continue
		}
		g.snap = snap
	}
}

func (s *Session) dropGroups(reason string) {
	for name := range s.groups {
		s.logger.Warn("group dropped", zap.String("group", name), zap.String("reason", reason))
		delete(s.groups, name)
	}
}

func (s *Session) prepareDso(channels int, hint uint64) error {
	if channels == 0 {
		s.dso = nil
		return nil
	}

	if s.dso != nil && s.dso.ChannelCount() == channels {
		s.dso.Reset()
		s.dso.EnableEnvelope(s.cfg.envelope)
	} else {
		dso, err := snapshot.NewDsoSnapshot(channels, s.snapshotOptions()...)
		if err != nil {
			return err
		}
		s.dso = dso
	}

	return s.dso.Init(hint)
}

func (s *Session) prepareAnalog(channels int, hint uint64) error {
	if channels == 0 {
		s.analog = nil
		return nil
	}

	if s.analog != nil && s.analog.ChannelCount() == channels {
		s.analog.Reset()
	} else {
		analog, err := snapshot.NewAnalogSnapshot(channels, s.cfg.analogBits, s.snapshotOptions()...)
		if err != nil {
			return err
		}
		s.analog = analog
	}

	return s.analog.Init(hint)
}

// FeedLogic appends a logic packet. A packet flagged with DataError is stored
// and reported to the data error handler. An allocation failure aborts the
// capture: the session stops and keeps the data received so far.
//
// The handler runs after the session lock is released, so it may call back
// into the session.
func (s *Session) FeedLogic(p LogicPacket) error {
	first, count, flagged, err := s.feedLogic(p)
	if err != nil {
		return err
	}
	if flagged && s.cfg.onDataError != nil {
		s.cfg.onDataError(first, count)
	}

	return nil
}

func (s *Session) feedLogic(p LogicPacket) (first, count uint64, flagged bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return 0, 0, false, errs.ErrNotRunning
	}
	if s.logic == nil {
		return 0, 0, false, errs.ErrNoLogicData
	}
	if p.UnitSize != s.logic.UnitSize() {
		return 0, 0, false, fmt.Errorf("%w: packet %d bytes, capture %d bytes", errs.ErrUnitSizeMismatch, p.UnitSize, s.logic.UnitSize())
	}

	first = s.logic.SampleCount()
	if err := s.logic.Append(p.Data); err != nil {
		return 0, 0, false, s.appendFailed(format.KindLogic, err)
	}
	if !p.DataError {
		return first, 0, false, nil
	}

	count = uint64(len(p.Data) / p.UnitSize)
	s.dataErrors++
	s.logger.Warn("logic packet data error",
		zap.Uint64("first_sample", first),
		zap.Uint64("samples", count),
	)

	return first, count, true, nil
}

// FeedDso appends an interleaved DSO packet.
func (s *Session) FeedDso(p DsoPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return errs.ErrNotRunning
	}
	if s.dso == nil || p.Channels != s.dso.ChannelCount() {
		return fmt.Errorf("%w: dso packet with %d channels", errs.ErrUnitSizeMismatch, p.Channels)
	}
	if uint64(len(p.Data)) != p.Samples*uint64(p.Channels) {
		return fmt.Errorf("%w: %d bytes for %d samples", errs.ErrPartialSample, len(p.Data), p.Samples)
	}

	if err := s.dso.Append(p.Data); err != nil {
		return s.appendFailed(format.KindDso, err)
	}

	return nil
}

// FeedAnalog appends an interleaved analog packet.
func (s *Session) FeedAnalog(p AnalogPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return errs.ErrNotRunning
	}
	if s.analog == nil || p.Channels != s.analog.ChannelCount() {
		return fmt.Errorf("%w: analog packet with %d channels", errs.ErrUnitSizeMismatch, p.Channels)
	}
	if uint64(len(p.Data)) != p.Samples*uint64(s.analog.UnitSize()) {
		return fmt.Errorf("%w: %d bytes for %d samples", errs.ErrPartialSample, len(p.Data), p.Samples)
	}

	if err := s.analog.Append(p.Data); err != nil {
		return s.appendFailed(format.KindAnalog, err)
	}

	return nil
}

// appendFailed stops the capture on allocation failures. Called with the lock held.
func (s *Session) appendFailed(kind format.SnapshotKind, err error) error {
	if errors.Is(err, errs.ErrOutOfMemory) || errors.Is(err, errs.ErrMemoryFailed) {
		s.state = StateStopped
		s.logger.Error("capture aborted", zap.Stringer("kind", kind), zap.Error(err))
	}

	return err
}

// Stop ends the capture. The snapshots stay readable.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return errs.ErrNotRunning
	}
	s.state = StateStopped

	fields := []zap.Field{zap.Uint64("data_errors", s.dataErrors)}
	if s.logic != nil {
		fields = append(fields, zap.Uint64("logic_samples", s.logic.SampleCount()))
	}
	if s.dso != nil {
		fields = append(fields, zap.Uint64("dso_samples", s.dso.SampleCount()))
	}
	if s.analog != nil {
		fields = append(fields, zap.Uint64("analog_samples", s.analog.SampleCount()))
	}
	s.logger.Info("capture stopped", fields...)

	return nil
}

// Clear drops all capture data and groups and returns the session to idle.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logic, s.dso, s.analog = nil, nil, nil
	clear(s.groups)
	s.dataErrors = 0
	s.state = StateIdle
	s.logger.Info("capture cleared")
}

// DataErrors returns the number of packets flagged with a data error in the
// current capture.
func (s *Session) DataErrors() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dataErrors
}

// Logic returns the logic snapshot, or nil without logic channels.
func (s *Session) Logic() *snapshot.LogicSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logic
}

// Dso returns the DSO snapshot, or nil without DSO channels.
func (s *Session) Dso() *snapshot.DsoSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dso
}

// Analog returns the analog snapshot, or nil without analog channels.
func (s *Session) Analog() *snapshot.AnalogSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.analog
}

// AddGroup creates a named group over the logic channels in indexList.
func (s *Session) AddGroup(name string, indexList []int) (*snapshot.GroupSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logic == nil {
		return nil, errs.ErrNoLogicData
	}
	if _, ok := s.groups[name]; ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrGroupExists, name)
	}

	snap, err := snapshot.NewGroupSnapshot(s.logic, indexList)
	if err != nil {
		return nil, err
	}
	s.groups[name] = &group{indexList: slices.Clone(indexList), snap: snap}
	s.logger.Info("group added", zap.String("group", name), zap.Ints("channels", indexList))

	return snap, nil
}

// Group returns the named group.
func (s *Session) Group(name string) (*snapshot.GroupSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownGroup, name)
	}

	return g.snap, nil
}

// RemoveGroup deletes the named group.
func (s *Session) RemoveGroup(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[name]; !ok {
		return fmt.Errorf("%w: %q", errs.ErrUnknownGroup, name)
	}
	delete(s.groups, name)
	s.logger.Info("group removed", zap.String("group", name))

	return nil
}

// Groups returns the group names in sorted order.
func (s *Session) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
