package interceptor

import (
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

// Transformer is the slice of the frame transform engine the RTP boundary
// needs. The root package's FrameTransformer satisfies it.
type Transformer interface {
	Enabled() bool
	Transform(payload []byte) ([]byte, error)
}

// TransformerRegistry maps track ids to the transformer bound for each
// direction. Pipelines register transformers here; the E2EE interceptor
// looks them up per stream. Safe for concurrent use.
type TransformerRegistry struct {
	mu        sync.RWMutex
	senders   map[string]Transformer
	receivers map[string]Transformer
}

func NewTransformerRegistry() *TransformerRegistry {
	return &TransformerRegistry{
		senders:   make(map[string]Transformer),
		receivers: make(map[string]Transformer),
	}
}

// SetSenderTransformer binds t to the outbound stream for trackID. A nil t
// removes the binding. At most one binding exists per track direction.
func (r *TransformerRegistry) SetSenderTransformer(trackID string, t Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == nil {
		delete(r.senders, trackID)
		return
	}
	r.senders[trackID] = t
}

// SetReceiverTransformer binds t to the inbound stream for trackID.
func (r *TransformerRegistry) SetReceiverTransformer(trackID string, t Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == nil {
		delete(r.receivers, trackID)
		return
	}
	r.receivers[trackID] = t
}

func (r *TransformerRegistry) senderTransformer(id string) Transformer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.senders, id)
}

func (r *TransformerRegistry) receiverTransformer(id string) Transformer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.receivers, id)
}

// lookup matches by stream id, falling back to a sole registered transformer
// since local stream infos do not always carry the track id.
func lookup(m map[string]Transformer, id string) Transformer {
	if t, ok := m[id]; ok {
		return t
	}
	if len(m) == 1 {
		for _, t := range m {
			return t
		}
	}
	return nil
}

// E2EEInterceptorFactory produces interceptors that run registered frame
// transformers at the RTP boundary: outgoing payloads are transformed before
// packetization, incoming payloads after depacketization.
type E2EEInterceptorFactory struct {
	registry *TransformerRegistry
	pool     *PayloadPool
}

func NewE2EEInterceptorFactory(registry *TransformerRegistry) *E2EEInterceptorFactory {
	return &E2EEInterceptorFactory{
		registry: registry,
		pool:     NewPayloadPool(),
	}
}

func (f *E2EEInterceptorFactory) NewInterceptor(id string) (interceptor.Interceptor, error) {
	return &E2EEInterceptor{registry: f.registry, pool: f.pool}, nil
}

type E2EEInterceptor struct {
	interceptor.NoOp

	registry *TransformerRegistry
	pool     *PayloadPool
}

func (i *E2EEInterceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attributes interceptor.Attributes) (int, error) {
		t := i.registry.senderTransformer(info.ID)
		if t == nil || !t.Enabled() {
			return writer.Write(header, payload, attributes)
		}

		buf, pool := i.pool.Get(len(payload))
		in := (*buf)[:len(payload)]
		copy(in, payload)

		// the buffer may not go back to the pool until the write completes:
		// a pass-through transformer returns its input aliased, and a
		// concurrent Get on another stream would scribble over the frame
		// mid-write
		out, err := t.Transform(in)
		if err != nil {
			if pool != nil {
				pool.Put(buf)
			}
			return 0, err
		}
		if out == nil {
			// frame dropped by the transformer
			if pool != nil {
				pool.Put(buf)
			}
			return len(payload), nil
		}

		n, err := writer.Write(header, out, attributes)
		if pool != nil {
			pool.Put(buf)
		}
		return n, err
	})
}

func (i *E2EEInterceptor) BindRemoteStream(info *interceptor.StreamInfo, reader interceptor.RTPReader) interceptor.RTPReader {
	return interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, attr, err := reader.Read(b, a)
		if err != nil {
			return n, attr, err
		}

		t := i.registry.receiverTransformer(info.ID)
		if t == nil || !t.Enabled() {
			return n, attr, nil
		}

		var header rtp.Header
		headerLen, err := header.Unmarshal(b[:n])
		if err != nil {
			return n, attr, err
		}

		out, err := t.Transform(b[headerLen:n])
		if err != nil || out == nil {
			// undecryptable or transformer-dropped frame, deliver header only
			// so the depacketizer discards it; health is reported through the
			// cryptor's observer, not here
			return headerLen, attr, nil
		}

		// decrypted payloads are never longer than the ciphertext
		copy(b[headerLen:], out)
		return headerLen + len(out), attr, nil
	})
}
