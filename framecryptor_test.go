package cryptor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTransformer struct {
	mu          sync.Mutex
	enabled     bool
	keyIndex    int
	notify      func(state CryptionState)
	registers   int
	unregisters int
	closed      bool
}

func (f *fakeTransformer) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

func (f *fakeTransformer) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeTransformer) SetKeyIndex(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyIndex = index
}

func (f *fakeTransformer) KeyIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keyIndex
}

func (f *fakeTransformer) RegisterObserver(fn func(state CryptionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify = fn
	f.registers++
}

func (f *fakeTransformer) UnregisterObserver() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify = nil
	f.unregisters++
}

func (f *fakeTransformer) Transform(payload []byte) ([]byte, error) {
	return payload, nil
}

func (f *fakeTransformer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fire emulates the engine emitting a state change from the media pipeline
// goroutine.
func (f *fakeTransformer) fire(state CryptionState) {
	f.mu.Lock()
	notify := f.notify
	f.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}

type fakeTrack struct {
	id   string
	kind string
}

func (t fakeTrack) ID() string   { return t.id }
func (t fakeTrack) Kind() string { return t.kind }

type fakeSenderPipeline struct {
	track     MediaTrack
	installed FrameTransformer
	installs  int
}

func (p *fakeSenderPipeline) Track() MediaTrack { return p.track }

func (p *fakeSenderPipeline) SetEncoderTransformer(t FrameTransformer) {
	p.installed = t
	p.installs++
}

type fakeReceiverPipeline struct {
	track     MediaTrack
	installed FrameTransformer
}

func (p *fakeReceiverPipeline) Track() MediaTrack { return p.track }

func (p *fakeReceiverPipeline) SetDecoderTransformer(t FrameTransformer) {
	p.installed = t
}

func newFakeFactory() (*FrameCryptorFactory, *fakeTransformer) {
	engine := &fakeTransformer{}
	factory := NewFrameCryptorFactory(WithTransformerFactory(
		func(participantID string, kind TrackKind, direction MediaDirection, algorithm Algorithm, provider *KeyProvider) FrameTransformer {
			return engine
		}))
	return factory, engine
}

func TestFrameCryptorConstruction(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{
		SharedKey:         []byte("secret"),
		RatchetWindowSize: 0,
		FailureTolerance:  0,
	})

	pipeline := &fakeSenderPipeline{track: fakeTrack{id: "TR_video", kind: "video"}}
	fc, err := NewFrameCryptorForSender("alice", AlgorithmSm4Gcm, provider, pipeline)
	require.NoError(t, err)

	require.Equal(t, AlgorithmAesGcm, fc.Algorithm()) // Sm4Gcm falls back
	require.Equal(t, TrackKindVideo, fc.Kind())
	require.Equal(t, DirectionSend, fc.Direction())
	require.Equal(t, "alice", fc.ParticipantID())
	require.Same(t, provider, fc.KeyProvider())
	require.False(t, fc.Enabled())
	require.Equal(t, 0, fc.KeyIndex())

	// the transform was installed into the pipeline and starts disabled
	require.Equal(t, 1, pipeline.installs)
	require.NotNil(t, pipeline.installed)
	require.False(t, pipeline.installed.Enabled())

	require.NoError(t, fc.Close())
}

func TestFactoryInvalidTrack(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{})

	_, err := NewFrameCryptorForSender("alice", AlgorithmAesGcm, provider, &fakeSenderPipeline{})
	require.ErrorIs(t, err, ErrInvalidTrack)

	_, err = NewFrameCryptorForSender("alice", AlgorithmAesGcm, provider, nil)
	require.ErrorIs(t, err, ErrInvalidTrack)

	_, err = NewFrameCryptorForReceiver("alice", AlgorithmAesGcm, provider, &fakeReceiverPipeline{})
	require.ErrorIs(t, err, ErrInvalidTrack)
}

func TestFactoryKindInference(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{})
	factory, _ := newFakeFactory()

	fc, err := factory.CryptorForSender("alice", AlgorithmAesGcm, provider,
		&fakeSenderPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)
	require.Equal(t, TrackKindAudio, fc.Kind())

	// anything that is not audio is video
	fc, err = factory.CryptorForReceiver("alice", AlgorithmAesGcm, provider,
		&fakeReceiverPipeline{track: fakeTrack{kind: "screenshare"}})
	require.NoError(t, err)
	require.Equal(t, TrackKindVideo, fc.Kind())
	require.Equal(t, DirectionReceive, fc.Direction())
}

func TestFrameCryptorEnableDisable(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{})
	factory, engine := newFakeFactory()

	fc, err := factory.CryptorForSender("alice", AlgorithmAesGcm, provider,
		&fakeSenderPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)

	require.False(t, fc.Enabled())
	require.False(t, engine.Enabled())

	fc.SetEnabled(true)
	require.True(t, fc.Enabled())
	require.True(t, engine.Enabled())

	fc.SetEnabled(false)
	require.False(t, fc.Enabled())
	require.False(t, engine.Enabled())
}

func TestFrameCryptorKeyIndex(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{})
	factory, engine := newFakeFactory()

	fc, err := factory.CryptorForSender("alice", AlgorithmAesGcm, provider,
		&fakeSenderPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)

	for _, index := range []int{0, 1, 5, 255} {
		fc.SetKeyIndex(index)
		require.Equal(t, index, fc.KeyIndex())
		require.Equal(t, index, engine.KeyIndex())
	}
}

func TestFrameCryptorIndependentKeyIndexes(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{SharedKey: []byte("secret")})

	fc1, err := NewFrameCryptorForSender("alice", AlgorithmAesGcm, provider,
		&fakeSenderPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)
	fc2, err := NewFrameCryptorForReceiver("bob", AlgorithmAesGcm, provider,
		&fakeReceiverPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)

	fc1.SetKeyIndex(7)
	require.Equal(t, 7, fc1.KeyIndex())
	require.Equal(t, 0, fc2.KeyIndex())
}

func TestFrameCryptorObserverReplace(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{})
	factory, engine := newFakeFactory()

	fc, err := factory.CryptorForSender("alice", AlgorithmAesGcm, provider,
		&fakeSenderPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)

	var gotA, gotB []CryptionState
	observerA := CryptionStateObserverFunc(func(pid string, state CryptionState) {
		require.Equal(t, "alice", pid)
		gotA = append(gotA, state)
	})
	observerB := CryptionStateObserverFunc(func(pid string, state CryptionState) {
		gotB = append(gotB, state)
	})

	fc.RegisterObserver(observerA)
	engine.fire(CryptionStateOk)
	require.Equal(t, []CryptionState{CryptionStateOk}, gotA)

	// registering B tears down A first
	fc.RegisterObserver(observerB)
	require.Equal(t, 2, engine.registers)
	require.Equal(t, 1, engine.unregisters)
	engine.fire(CryptionStateMissingKey)
	require.Equal(t, []CryptionState{CryptionStateOk}, gotA)
	require.Equal(t, []CryptionState{CryptionStateMissingKey}, gotB)

	// after unregistration events reach neither
	fc.UnregisterObserver()
	engine.fire(CryptionStateDecryptionFailed)
	require.Equal(t, []CryptionState{CryptionStateOk}, gotA)
	require.Equal(t, []CryptionState{CryptionStateMissingKey}, gotB)
}

func TestFrameCryptorUnregisterIdempotent(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{})
	factory, engine := newFakeFactory()

	fc, err := factory.CryptorForSender("alice", AlgorithmAesGcm, provider,
		&fakeSenderPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)

	fc.UnregisterObserver()
	fc.UnregisterObserver()
	require.Equal(t, 0, engine.unregisters)

	fc.RegisterObserver(CryptionStateObserverFunc(func(string, CryptionState) {}))
	fc.UnregisterObserver()
	fc.UnregisterObserver()
	require.Equal(t, 1, engine.unregisters)
}

func TestFrameCryptorCloseWithObserver(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{})
	factory, engine := newFakeFactory()

	fc, err := factory.CryptorForSender("alice", AlgorithmAesGcm, provider,
		&fakeSenderPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)

	delivered := 0
	fc.RegisterObserver(CryptionStateObserverFunc(func(string, CryptionState) {
		delivered++
	}))

	require.NoError(t, fc.Close())
	require.True(t, engine.closed)
	require.Equal(t, 1, engine.unregisters)

	// a racing event delivered after teardown is dropped by the bridge
	fc.bridge.notify(CryptionStateOk)
	require.Equal(t, 0, delivered)

	// Close is idempotent, post-close mutators are no-ops
	require.NoError(t, fc.Close())
	fc.SetEnabled(true)
	require.False(t, fc.Enabled())
	fc.SetKeyIndex(4)
	require.Equal(t, 0, fc.KeyIndex())
}

func TestFrameCryptorConcurrentEnable(t *testing.T) {
	provider := newTestProvider(t, KeyProviderOptions{})
	factory, _ := newFakeFactory()

	fc, err := factory.CryptorForSender("alice", AlgorithmAesGcm, provider,
		&fakeSenderPipeline{track: fakeTrack{kind: "audio"}})
	require.NoError(t, err)

	const iterations = 10000
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			fc.SetEnabled(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			fc.Enabled()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			fc.SetKeyIndex(i)
			fc.KeyIndex()
		}
	}()

	wg.Wait()
}
