package migration

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/models"
	"sdnguard/internal/topology"
)

var _ = Describe("BuildPlan", func() {
	var topo *topology.Topology

	BeforeEach(func() {
		var err error
		topo, err = topology.New(topology.DefaultSpec())
		Expect(err).ToNot(HaveOccurred())
	})

	It("should build the seven-step move of h3 from s2 to s1", func() {
		plan, err := BuildPlan(topo, Target{Host: "h3", FromSwitch: "s2", ToSwitch: "s1"})

		Expect(err).ToNot(HaveOccurred())
		Expect(plan.From).To(Equal(models.AttachmentPoint{Switch: "s2", Port: "s2-eth1"}))
		Expect(plan.To).To(Equal(models.AttachmentPoint{Switch: "s1", Port: "s1-eth4"}))
		Expect(plan.Commands).To(Equal([]cmdqueue.Command{
			cmdqueue.SetLinkStatus{A: "h3", B: "s2", Up: false},
			cmdqueue.AttachLink{A: "h3", B: "s1", AIntf: "h3-eth1", BIntf: "s1-eth4"},
			cmdqueue.SetInterfaceUp{Node: "h3", Intf: "h3-eth1", Address: "10.0.0.3/8", DefaultRoute: true},
			cmdqueue.DeleteInterface{Node: "h3", Intf: "h3-eth0"},
			cmdqueue.DetachPort{Switch: "s2", Port: "s2-eth1"},
			cmdqueue.DeleteLink{Intf: "s2-eth1"},
			cmdqueue.ClearFlowTable{Switches: []string{"s2", "s1"}},
		}))
	})

	It("should render queue lines", func() {
		plan, err := BuildPlan(topo, Target{Host: "h3", FromSwitch: "s2", ToSwitch: "s1", NewPort: "s1-eth3"})
		Expect(err).ToNot(HaveOccurred())

		lines, err := plan.Lines()
		Expect(err).ToNot(HaveOccurred())
		Expect(lines).To(HaveLen(7))
		Expect(lines[1]).To(Equal("py add-link h3 s1 h3-eth1 s1-eth3"))
		Expect(lines[6]).To(Equal("py del-flows s2 s1"))
	})

	It("should reject unknown hosts and missing links", func() {
		_, err := BuildPlan(topo, Target{Host: "h9", FromSwitch: "s2", ToSwitch: "s1"})
		Expect(err).To(HaveOccurred())

		_, err = BuildPlan(topo, Target{Host: "h1", FromSwitch: "s2", ToSwitch: "s1"})
		Expect(err).To(MatchError(topology.ErrNoLink))

		_, err = BuildPlan(topo, Target{Host: "h3", FromSwitch: "s2", ToSwitch: "s2"})
		Expect(err).To(HaveOccurred())

		_, err = BuildPlan(topo, Target{Host: "h3", FromSwitch: "h1", ToSwitch: "s1"})
		Expect(err).To(HaveOccurred())
	})
})
