package params_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dverner/edusim/internal/params"
	"github.com/dverner/edusim/internal/template"
)

func projectileTemplate() *template.Template {
	tpl, err := template.NewStore("").Load("projectile_motion")
	Expect(err).NotTo(HaveOccurred())
	return tpl
}

var _ = Describe("Validate", func() {
	var tpl *template.Template

	BeforeEach(func() {
		tpl = projectileTemplate()
	})

	It("is total: every declared parameter appears in the output", func() {
		out := params.Validate(tpl, nil)
		for _, name := range tpl.Parameters.Names {
			Expect(out.Values).To(HaveKey(name), "missing %s", name)
		}
	})

	It("passes in-range values through unchanged", func() {
		out := params.Validate(tpl, params.Candidate{
			"initial_velocity": {Value: 15, Unit: "m/s"},
		})
		v := out.Values["initial_velocity"]
		Expect(v.Value).To(Equal(15.0))
		Expect(v.Status).To(Equal(params.StatusOK))
	})

	It("defaults absent parameters", func() {
		out := params.Validate(tpl, params.Candidate{
			"initial_velocity": {Value: 15, Unit: "m/s"},
		})
		spec, _ := tpl.Parameters.Get("gravity")
		v := out.Values["gravity"]
		Expect(v.Value).To(Equal(spec.Default))
		Expect(v.Status).To(Equal(params.StatusDefaulted))
	})

	It("clamps values below the range to min exactly", func() {
		spec, _ := tpl.Parameters.Get("initial_velocity")
		out := params.Validate(tpl, params.Candidate{
			"initial_velocity": {Value: spec.Min - 100},
		})
		v := out.Values["initial_velocity"]
		Expect(v.Value).To(Equal(spec.Min))
		Expect(v.Status).To(Equal(params.StatusClamped))
	})

	It("clamps values above the range to max exactly", func() {
		spec, _ := tpl.Parameters.Get("launch_angle")
		out := params.Validate(tpl, params.Candidate{
			"launch_angle": {Value: 720, Unit: "degrees"},
		})
		v := out.Values["launch_angle"]
		Expect(v.Value).To(Equal(spec.Max))
		Expect(v.Status).To(Equal(params.StatusClamped))
	})

	It("keeps range boundary values as ok, not clamped", func() {
		spec, _ := tpl.Parameters.Get("initial_velocity")
		out := params.Validate(tpl, params.Candidate{
			"initial_velocity": {Value: spec.Max},
		})
		Expect(out.Values["initial_velocity"].Status).To(Equal(params.StatusOK))
	})

	It("converts compatible units before range checking", func() {
		out := params.Validate(tpl, params.Candidate{
			"initial_velocity": {Value: 36, Unit: "km/h"},
		})
		v := out.Values["initial_velocity"]
		Expect(v.Value).To(BeNumerically("~", 10.0, 1e-9))
		Expect(v.Status).To(Equal(params.StatusOK))
	})

	It("rejects unconvertible units to the default with a warning", func() {
		spec, _ := tpl.Parameters.Get("initial_velocity")
		out := params.Validate(tpl, params.Candidate{
			"initial_velocity": {Value: 20, Unit: "liters"},
		})
		v := out.Values["initial_velocity"]
		Expect(v.Value).To(Equal(spec.Default))
		Expect(v.Status).To(Equal(params.StatusRejected))
		Expect(out.Warnings).NotTo(BeEmpty())
	})

	It("rejects dimension mismatches", func() {
		out := params.Validate(tpl, params.Candidate{
			"initial_velocity": {Value: 20, Unit: "kg"},
		})
		Expect(out.Values["initial_velocity"].Status).To(Equal(params.StatusRejected))
	})

	It("rejects non-finite values", func() {
		out := params.Validate(tpl, params.Candidate{
			"gravity": {Value: math.NaN()},
		})
		spec, _ := tpl.Parameters.Get("gravity")
		v := out.Values["gravity"]
		Expect(v.Value).To(Equal(spec.Default))
		Expect(v.Status).To(Equal(params.StatusRejected))
	})

	It("drops undeclared names with a warning", func() {
		out := params.Validate(tpl, params.Candidate{
			"air_density": {Value: 1.2, Unit: "kg"},
		})
		Expect(out.Values).NotTo(HaveKey("air_density"))
		Expect(out.Warnings).NotTo(BeEmpty())
	})
})

var _ = Describe("Defaults", func() {
	It("marks every parameter defaulted", func() {
		tpl := projectileTemplate()
		out := params.Defaults(tpl)
		for _, name := range tpl.Parameters.Names {
			spec, _ := tpl.Parameters.Get(name)
			v := out.Values[name]
			Expect(v.Value).To(Equal(spec.Default))
			Expect(v.Status).To(Equal(params.StatusDefaulted))
		}
	})
})

var _ = Describe("ConvertUnit", func() {
	It("treats an empty source unit as already normalized", func() {
		v, err := params.ConvertUnit(42, "", "m/s")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(42.0))
	})

	It("converts lengths", func() {
		v, err := params.ConvertUnit(250, "cm", "m")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeNumerically("~", 2.5, 1e-12))
	})

	It("converts angles to degrees", func() {
		v, err := params.ConvertUnit(math.Pi/2, "rad", "degrees")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeNumerically("~", 90.0, 1e-9))
	})

	It("is case-insensitive on equal units", func() {
		v, err := params.ConvertUnit(5, "M/S", "m/s")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(5.0))
	})

	It("fails on unknown units", func() {
		_, err := params.ConvertUnit(1, "furlongs", "m")
		Expect(err).To(HaveOccurred())
	})

	It("fails across dimensions", func() {
		_, err := params.ConvertUnit(1, "s", "m")
		Expect(err).To(HaveOccurred())
	})
})
