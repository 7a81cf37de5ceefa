package zenstore

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// MongoRegistry is the codec registry used by every client and codec helper in
// this package. It extends the driver defaults with uuid.UUID support, stored
// as BSON binary subtype 4.
var MongoRegistry = buildMongoRegistry()

const uuidSubtype = byte(0x04)

var tUUID = reflect.TypeOf(uuid.UUID{})

func buildMongoRegistry() *bsoncodec.Registry {
	rb := bson.NewRegistryBuilder()
	rb.RegisterTypeEncoder(tUUID, bsoncodec.ValueEncoderFunc(uuidEncodeValue))
	rb.RegisterTypeDecoder(tUUID, bsoncodec.ValueDecoderFunc(uuidDecodeValue))
	return rb.Build()
}

func uuidEncodeValue(ec bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tUUID {
		return bsoncodec.ValueEncoderError{Name: "uuidEncodeValue", Types: []reflect.Type{tUUID}, Received: val}
	}
	b := val.Interface().(uuid.UUID)
	return vw.WriteBinaryWithSubtype(b[:], uuidSubtype)
}

func uuidDecodeValue(dc bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tUUID {
		return bsoncodec.ValueDecoderError{Name: "uuidDecodeValue", Types: []reflect.Type{tUUID}, Received: val}
	}

	var data []byte
	var subtype byte
	var err error
	switch vrType := vr.Type(); vrType {
	case bsontype.Binary:
		data, subtype, err = vr.ReadBinary()
		if subtype != uuidSubtype && subtype != 0x00 {
			return fmt.Errorf("unsupported binary subtype %v for uuid", subtype)
		}
	case bsontype.Null:
		err = vr.ReadNull()
	case bsontype.Undefined:
		err = vr.ReadUndefined()
	default:
		return fmt.Errorf("cannot decode %v into a uuid.UUID", vrType)
	}

	if err != nil {
		return err
	}

	if len(data) == 0 {
		val.Set(reflect.ValueOf(uuid.UUID{}))
		return nil
	}

	id, err := uuid.FromBytes(data)
	if err != nil {
		return err
	}

	val.Set(reflect.ValueOf(id))
	return nil
}

func MarshalWithRegistry(val interface{}) ([]byte, error) {
	buf := bytes.NewBuffer([]byte{})
	vw, err := bsonrw.NewBSONValueWriter(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create BSON value writer: %w", err)
	}

	enc, err := bson.NewEncoder(vw)
	if err != nil {
		return nil, fmt.Errorf("failed to create BSON encoder: %w", err)
	}

	enc.SetRegistry(MongoRegistry)

	if err := enc.Encode(val); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func UnmarshalWithRegistry(data []byte, val interface{}) error {
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(data))
	if err != nil {
		return fmt.Errorf("failed to create BSON decoder: %w", err)
	}
	dec.SetRegistry(MongoRegistry)

	return dec.Decode(val)
}
