package classfile

import "encoding/binary"

// AttributeInfo is a raw attribute. Parsed holds the decoded form for the
// attributes the reader understands and is nil otherwise.
type AttributeInfo struct {
	NameIndex uint16
	Info      []byte
	Parsed    any
}

type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
	Attributes     []AttributeInfo
}

type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

type SourceFileAttribute struct {
	SourceFileIndex uint16
}

type ConstantValueAttribute struct {
	ConstantValueIndex uint16
}

type ExceptionsAttribute struct {
	ExceptionIndexTable []uint16
}

func (a *AttributeInfo) AsCode() *CodeAttribute {
	code, _ := a.Parsed.(*CodeAttribute)
	return code
}

func (a *AttributeInfo) AsSourceFile() *SourceFileAttribute {
	sf, _ := a.Parsed.(*SourceFileAttribute)
	return sf
}

func (a *AttributeInfo) AsConstantValue() *ConstantValueAttribute {
	cv, _ := a.Parsed.(*ConstantValueAttribute)
	return cv
}

func (a *AttributeInfo) AsExceptions() *ExceptionsAttribute {
	ex, _ := a.Parsed.(*ExceptionsAttribute)
	return ex
}

func parseAttribute(name string, info []byte, cp ConstantPool) (any, error) {
	switch name {
	case AttrCode:
		return parseCodeAttribute(info, cp)
	case AttrSourceFile:
		if len(info) != 2 {
			return nil, attributeLength(name, len(info))
		}
		return &SourceFileAttribute{SourceFileIndex: binary.BigEndian.Uint16(info)}, nil
	case AttrConstantValue:
		if len(info) != 2 {
			return nil, attributeLength(name, len(info))
		}
		return &ConstantValueAttribute{ConstantValueIndex: binary.BigEndian.Uint16(info)}, nil
	case AttrExceptions:
		return parseExceptionsAttribute(info)
	}
	return nil, nil
}

func parseCodeAttribute(info []byte, cp ConstantPool) (*CodeAttribute, error) {
	if len(info) < 8 {
		return nil, attributeLength(AttrCode, len(info))
	}

	code := &CodeAttribute{
		MaxStack:  binary.BigEndian.Uint16(info[0:2]),
		MaxLocals: binary.BigEndian.Uint16(info[2:4]),
	}

	codeLength := int(binary.BigEndian.Uint32(info[4:8]))
	offset := 8 + codeLength
	if len(info) < offset+2 {
		return nil, attributeLength(AttrCode, len(info))
	}
	code.Code = info[8:offset]

	handlers := int(binary.BigEndian.Uint16(info[offset:]))
	offset += 2
	if len(info) < offset+8*handlers+2 {
		return nil, attributeLength(AttrCode, len(info))
	}
	code.ExceptionTable = make([]ExceptionTableEntry, handlers)
	for i := range code.ExceptionTable {
		code.ExceptionTable[i] = ExceptionTableEntry{
			StartPC:   binary.BigEndian.Uint16(info[offset:]),
			EndPC:     binary.BigEndian.Uint16(info[offset+2:]),
			HandlerPC: binary.BigEndian.Uint16(info[offset+4:]),
			CatchType: binary.BigEndian.Uint16(info[offset+6:]),
		}
		offset += 8
	}

	r := &reader{data: info, pos: offset}
	attrs, err := r.attributes(cp)
	if err != nil {
		return nil, err
	}
	code.Attributes = attrs
	return code, nil
}

func parseExceptionsAttribute(info []byte) (*ExceptionsAttribute, error) {
	if len(info) < 2 {
		return nil, attributeLength(AttrExceptions, len(info))
	}
	count := int(binary.BigEndian.Uint16(info))
	if len(info) != 2+2*count {
		return nil, attributeLength(AttrExceptions, len(info))
	}
	ex := &ExceptionsAttribute{ExceptionIndexTable: make([]uint16, count)}
	for i := range ex.ExceptionIndexTable {
		ex.ExceptionIndexTable[i] = binary.BigEndian.Uint16(info[2+2*i:])
	}
	return ex, nil
}
