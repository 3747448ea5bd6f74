package backend

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendChatCloud(t *testing.T) {
	var got cloudPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"你好呀"}}]}`))
	}))
	defer server.Close()

	c := NewClient(WithAPIKey("test-key"), WithCloudURL(server.URL))

	history := []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "你好"},
	}
	reply, err := c.SendChat(context.Background(), &ChatRequest{
		Provider: ProviderCloud,
		Model:    "gpt-4o-mini",
		Messages: history,
	})
	if err != nil {
		t.Fatalf("SendChat failed: %v", err)
	}
	if reply != "你好呀" {
		t.Errorf("reply = %q", reply)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("payload model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "你好" {
		t.Errorf("payload messages = %+v, want full ordered history", got.Messages)
	}
}

func TestSendChatCloudEmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewClient(WithCloudURL(server.URL))
	_, err := c.SendChat(context.Background(), &ChatRequest{Provider: ProviderCloud})
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("got err %v, want ErrEmptyReply", err)
	}
}

func TestSendChatLocal(t *testing.T) {
	var got localPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("local request carried auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"response":"我在呢"}`))
	}))
	defer server.Close()

	c := NewClient()
	reply, err := c.SendChat(context.Background(), &ChatRequest{
		Provider: ProviderLocal,
		Model:    "qwen-lora",
		Endpoint: server.URL,
		Messages: []Message{{Role: RoleUser, Content: "在吗"}},
	})
	if err != nil {
		t.Fatalf("SendChat failed: %v", err)
	}
	if reply != "我在呢" {
		t.Errorf("reply = %q", reply)
	}

	// The local variant carries the sampling parameters.
	if got.MaxNewTokens != localMaxNewTokens || got.Temperature != localTemperature || got.TopP != localTopP {
		t.Errorf("sampling params = %+v", got)
	}
}

func TestSendChatLocalBareBodyFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  plain text reply\n"))
	}))
	defer server.Close()

	c := NewClient()
	reply, err := c.SendChat(context.Background(), &ChatRequest{
		Provider: ProviderLocal,
		Endpoint: server.URL,
	})
	if err != nil {
		t.Fatalf("SendChat failed: %v", err)
	}
	if reply != "plain text reply" {
		t.Errorf("reply = %q, want trimmed bare body", reply)
	}
}

func TestSendChatLocalEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c := NewClient()
	_, err := c.SendChat(context.Background(), &ChatRequest{
		Provider: ProviderLocal,
		Endpoint: server.URL,
	})
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("got err %v, want ErrEmptyReply", err)
	}
}

func TestSendChatLocalEmptyResponseField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":""}`))
	}))
	defer server.Close()

	c := NewClient()
	_, err := c.SendChat(context.Background(), &ChatRequest{
		Provider: ProviderLocal,
		Endpoint: server.URL,
	})
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("got err %v, want ErrEmptyReply instead of the raw JSON body", err)
	}
}

func TestSendChatLocalRequiresEndpoint(t *testing.T) {
	c := NewClient()
	_, err := c.SendChat(context.Background(), &ChatRequest{Provider: ProviderLocal})
	if !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("got err %v, want ErrNoEndpoint", err)
	}
}

func TestSendChatProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(WithCloudURL(server.URL))
	_, err := c.SendChat(context.Background(), &ChatRequest{Provider: ProviderCloud})
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("got err %v, want ErrProtocol", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("error is not an *APIError")
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if !apiErr.IsServerError() {
		t.Error("500 should report as server error")
	}
}

func TestSendChatNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	c := NewClient(WithCloudURL(server.URL))
	_, err := c.SendChat(context.Background(), &ChatRequest{Provider: ProviderCloud})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("got err %v, want ErrNetwork", err)
	}
}

func TestPayloadEscapesSpecialCharacters(t *testing.T) {
	tricky := "back\\slash \"quote\"\nnewline\rcarriage\ttab"

	var got cloudPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("payload is not valid JSON: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	c := NewClient(WithCloudURL(server.URL))
	if _, err := c.SendChat(context.Background(), &ChatRequest{
		Provider: ProviderCloud,
		Messages: []Message{{Role: RoleUser, Content: tricky}},
	}); err != nil {
		t.Fatalf("SendChat failed: %v", err)
	}

	if got.Messages[0].Content != tricky {
		t.Errorf("content corrupted by escaping: %q != %q", got.Messages[0].Content, tricky)
	}
}

// tinyWAV builds a minimal 16-bit mono PCM container.
func tinyWAV(sampleBytes []byte) []byte {
	fmtBody := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtBody[0:2], 1) // linear PCM
	binary.LittleEndian.PutUint16(fmtBody[2:4], 1)
	binary.LittleEndian.PutUint32(fmtBody[4:8], 16000)
	binary.LittleEndian.PutUint32(fmtBody[8:12], 32000)
	binary.LittleEndian.PutUint16(fmtBody[12:14], 2)
	binary.LittleEndian.PutUint16(fmtBody[14:16], 16)

	var body []byte
	for _, c := range []struct {
		tag     string
		payload []byte
	}{{"fmt ", fmtBody}, {"data", sampleBytes}} {
		body = append(body, c.tag...)
		body = binary.LittleEndian.AppendUint32(body, uint32(len(c.payload)))
		body = append(body, c.payload...)
	}

	buf := []byte("RIFF")
	buf = binary.LittleEndian.AppendUint32(buf, uint32(4+len(body)))
	buf = append(buf, "WAVE"...)
	return append(buf, body...)
}

func TestSynthesizeSpeech(t *testing.T) {
	var got speechPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write(tinyWAV([]byte{0, 0, 0, 64, 0, 192, 255, 127}))
	}))
	defer server.Close()

	c := NewClient()
	pcm, err := c.SynthesizeSpeech(context.Background(), "你好", server.URL)
	if err != nil {
		t.Fatalf("SynthesizeSpeech failed: %v", err)
	}

	if got.Text != "你好" || got.TextLanguage != "zh" {
		t.Errorf("payload = %+v, want text with zh language tag", got)
	}
	if len(pcm.Samples) != 4 {
		t.Errorf("samples = %d, want 4", len(pcm.Samples))
	}
	if pcm.SampleRate != 16000 || pcm.Channels != 1 {
		t.Errorf("format = %d Hz x%d", pcm.SampleRate, pcm.Channels)
	}
}

func TestSynthesizeSpeechDecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not audio at all"))
	}))
	defer server.Close()

	c := NewClient()
	_, err := c.SynthesizeSpeech(context.Background(), "hi", server.URL)
	if !errors.Is(err, ErrAudioDecodeFailed) {
		t.Fatalf("got err %v, want ErrAudioDecodeFailed", err)
	}
	if !IsDecodeFailure(err) {
		t.Error("IsDecodeFailure should report true")
	}
}

func TestSynthesizeSpeechProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient()
	_, err := c.SynthesizeSpeech(context.Background(), "hi", server.URL)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("got err %v, want ErrProtocol", err)
	}
}
