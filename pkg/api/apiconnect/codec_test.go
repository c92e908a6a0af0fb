package apiconnect

import (
	"testing"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/pkg/api"
)

func TestCodecPlainStruct(t *testing.T) {
	codec := Codec{}

	data, err := codec.Marshal(&api.Split{UserID: "u1", PaidShare: "10.00", OwedShare: "3.33"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"user_id":"u1","paid_share":"10.00","owed_share":"3.33"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var got api.Split
	if err := codec.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.OwedShare != "3.33" {
		t.Errorf("OwedShare = %q, want 3.33", got.OwedShare)
	}
}

func TestCodecProtoMessage(t *testing.T) {
	codec := Codec{}

	data, err := codec.Marshal(&emptypb.Empty{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("Marshal = %s, want {}", data)
	}

	if err := codec.Unmarshal([]byte(`{"ignored":1}`), &emptypb.Empty{}); err != nil {
		t.Errorf("Unmarshal should discard unknown fields: %v", err)
	}
	if err := codec.Unmarshal(nil, &emptypb.Empty{}); err != nil {
		t.Errorf("Unmarshal of empty body failed: %v", err)
	}
}

func TestCodecName(t *testing.T) {
	if (Codec{}).Name() != "json" {
		t.Errorf("Name = %q, want json", Codec{}.Name())
	}
}
