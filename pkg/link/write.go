package link

import "github.com/coreld/coreld/pkg/inputfile"

// WriteInputSection copies an input section's raw bytes into its assigned
// slot in the output buffer. Relocation application (patching those bytes
// against the final addresses the layout pass computed) is out of scope
// for this pipeline, so unlike the teacher's relaxation-aware WriteTo
// (needed for RISC-V instruction shrinkage) this is a plain copy.
func WriteInputSection(isec *inputfile.InputSection, dst []byte) {
	copy(dst, isec.Contents)
}
