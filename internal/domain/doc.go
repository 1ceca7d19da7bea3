// Package domain implements the crop recommendation core: a fixed rule table
// keyed on season and soil, and a random forest classifier over soil and
// climate measurements whose ranked output can be restricted to the crops a
// region has historically grown.
//
// # Rule table
//
// [RuleRecommender] returns one of four fixed crop lists. The first matching
// rule wins and soil names are compared exactly:
//
//	Kharif + Alluvial  →  Paddy, Maize, Jute
//	Rabi + Black       →  Wheat, Barley, Gram
//	Zaid (any soil)    →  Watermelon, Cucumber, Bitter Gourd
//	anything else      →  Millets, Pulses, Sunflower
//
// # Classifier
//
// [Fit] grows a bagged ensemble of CART trees (Gini impurity, bootstrap
// sampling, sqrt(width) candidate columns per split). Every random draw comes
// from a PCG stream seeded by [ForestOptions].Seed and the tree index, so a
// fit is reproducible.
//
// Feature layout is described by a [Schema]: numeric columns in training
// order, followed by an optional soil column. Soil labels are encoded by
// sorted order over the training set; the table is stored in the model and
// an unseen label at inference time yields [UnknownCategoryError].
//
// Class labels are also kept in sorted order. That order is the tie-breaker
// when two crops score the same, which keeps [TrainedModel.Rank] output
// repeatable.
//
// # Region filter
//
// A [CropSet] restricts ranking to crops grown in a district. Names are
// compared after trimming and lower-casing, because the training set labels
// crops as "rice" while production history records "Rice". Production names
// with a different spelling, such as "Arhar/Tur" or "Moong(Green Gram)", are
// mapped onto the classifier label through a fixed alias table. A nil set means
// no filtering; a set that excludes every class yields
// [OutcomeNoEligibleCrop] rather than an empty ranked list.
//
// # Lifecycle
//
// A [TrainedModel] is never mutated after Fit. Retraining produces a new
// value, so readers holding the old pointer keep getting consistent answers.
package domain
